package scalux

// Version is overridden at build time with -ldflags "-X github.com/scalux/scalux.Version=...".
var Version = "0.1.0-dev"
