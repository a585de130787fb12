package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy вырезает любую разметку из пользовательского текста
var textPolicy = bluemonday.StrictPolicy()

func sanitizeText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}
