package email

// Config holds email transport configuration. Which sender is built depends
// on what is set: Postmark tokens, then SMTP host, then the dev directory.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SenderEmail  string `env:"SENDER_EMAIL" envDefault:"notifications@library.local"`
	SupportEmail string `env:"SUPPORT_EMAIL" envDefault:"help@library.local"`

	DevDir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
