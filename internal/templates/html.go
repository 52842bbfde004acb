package templates

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Gmail drops <style> blocks, so every element is styled inline.
var inlineStyles = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`<strong>`), `<b style="color: #2c3e50; font-weight: bold;">`},
	{regexp.MustCompile(`</strong>`), `</b>`},
	{regexp.MustCompile(`<a href="([^"]+)">`), `<a href="$1" style="color: #3498db; text-decoration: none;">`},
	{regexp.MustCompile(`<h2>`), `<h2 style="color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 5px; margin-top: 20px;">`},
	{regexp.MustCompile(`<h3>`), `<h3 style="color: #34495e; margin-top: 15px;">`},
	{regexp.MustCompile(`<p>`), `<p style="margin: 10px 0;">`},
	{regexp.MustCompile(`<ul>`), `<ul style="margin: 10px 0; padding-left: 20px;">`},
	{regexp.MustCompile(`<li>`), `<li style="margin: 5px 0;">`},
}

const documentShell = `<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #ffffff;">
%s
</body>
</html>`

// ToHTML converts markdown to an inline-styled HTML document suitable for email clients.
func ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	body := buf.String()
	for _, s := range inlineStyles {
		body = s.pattern.ReplaceAllString(body, s.replace)
	}
	return fmt.Sprintf(documentShell, strings.TrimSpace(body)), nil
}

// LooksLikeHTML reports whether body is an HTML document rather than plain text.
func LooksLikeHTML(body string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(trimmed, "<html") || strings.HasPrefix(trimmed, "<!doctype html")
}
