package dto

type TwoFactorSetupResponse struct {
	Secret      string   `json:"secret"`
	QRCodeURL   string   `json:"qr_code_url"` // otpauth:// provisioning URI
	BackupCodes []string `json:"backup_codes"`
	Message     string   `json:"message"`
}

type TwoFactorEnableRequest struct {
	Code string `json:"code" binding:"required,max=20"`
}

type TwoFactorVerifyRequest struct {
	Code string `json:"code" binding:"required,max=20"`
}

type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
	// Required while 2FA is enabled; a pending, never-confirmed setup can
	// be torn down with the password alone
	Code string `json:"code" binding:"omitempty,max=20"`
}

type TwoFactorBackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
	Message     string   `json:"message"`
}

type TwoFactorStatusResponse struct {
	Enabled          bool `json:"enabled"`
	PendingSetup     bool `json:"pending_setup"`
	BackupCodesLeft  int  `json:"backup_codes_left"`
}
