// internal/service/render.go
package service

import (
	"strings"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// RenderTemplate substitutes {placeholder} slots with the given values.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// ContactVariables are the standard bindings available to every template.
func ContactVariables(c *model.Contact) map[string]string {
	return map[string]string{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"location":   c.Location,
	}
}
