package utils

import (
	"io"
	"mime/multipart"
	"slices"

	"github.com/gabriel-vasile/mimetype"

	"crf-system/config"
	apperrors "crf-system/pkg/errors"
)

// ValidateFile проверяет размер и реальный тип файла по правилам контекста загрузки.
// Возвращает определенный MIME-тип; указатель файла возвращается в начало.
func ValidateFile(fileHeader *multipart.FileHeader, file io.ReadSeeker, contextName string) (string, error) {
	rules, ok := config.UploadContexts[contextName]
	if !ok {
		return "", apperrors.NewInvalidInputError("неизвестный контекст загрузки: %s", contextName)
	}

	if rules.MaxSizeMB > 0 {
		maxSizeBytes := rules.MaxSizeMB * 1024 * 1024
		if fileHeader.Size > maxSizeBytes {
			return "", apperrors.NewInvalidInputError("размер файла %s (%d KB) превышает лимит в %d MB",
				fileHeader.Filename, fileHeader.Size/1024, rules.MaxSizeMB)
		}
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", apperrors.NewInvalidInputError("не удалось прочитать файл %s", fileHeader.Filename)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", apperrors.NewInvalidInputError("не удалось сбросить указатель файла %s", fileHeader.Filename)
	}

	if !slices.ContainsFunc(rules.AllowedMimeTypes, mtype.Is) {
		return "", apperrors.NewInvalidInputError("недопустимый тип файла %s: %s", fileHeader.Filename, mtype.String())
	}

	return mtype.String(), nil
}
