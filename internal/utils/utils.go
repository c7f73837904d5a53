// Пакет utils содержит общие вспомогательные функции.
// Все функции чистые и не зависят от глобального состояния.
package utils

import (
	"path/filepath"
	"strings"
)

// IsPathSafe проверяет, что путь не выходит за пределы baseDir
// (защита от path traversal при формировании файлов кэша).
func IsPathSafe(p, baseDir string) bool {
	cleanPath := filepath.Clean(p)
	rel, err := filepath.Rel(baseDir, cleanPath)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}

// SanitizeFileName оставляет в имени файла только безопасные символы.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return filepath.Base(b.String())
}
