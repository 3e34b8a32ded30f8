package config

type UploadConfig struct {
	AllowedMimeTypes []string
	MaxSizeMB        int64
	PathPrefix       string
}

var UploadContexts = map[string]UploadConfig{
	// Вложения к заявке: сканы форм, скриншоты ошибок, спецификации
	"crf_attachment": {
		AllowedMimeTypes: []string{
			"image/jpeg", "image/png", "image/jpg", "application/pdf",
			"application/zip",
		},
		MaxSizeMB:  10,
		PathPrefix: "crfs",
	},
}
