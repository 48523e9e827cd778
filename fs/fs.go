// Package appfs embeds the files the applications need at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates assets
var FS embed.FS

const EmailTemplatesDir = "templates/email"
