package version

// Version is the CLI version, overridden at build time via
// -ldflags "-X .../internal/version.Version=vX.Y.Z".
var Version = "v0.1.0"
