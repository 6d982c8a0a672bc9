package oracle

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FallbackDisplayName derives a label from the last segment of an app id,
// e.g. "com.example.my_app" becomes "My App".
func FallbackDisplayName(appID string) string {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return ""
	}
	seg := appID
	if i := strings.LastIndex(appID, "."); i >= 0 && i < len(appID)-1 {
		seg = appID[i+1:]
	}
	seg = strings.TrimSpace(strings.ReplaceAll(seg, "_", " "))
	if seg == "" {
		return appID
	}
	// A Caser is stateful, so each call gets its own.
	return cases.Title(language.English).String(seg)
}
