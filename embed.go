package flatpress

import "embed"

// EmbeddedAssets contains static assets shipped with the framework:
// analytics.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
