package version

// Version is the current version of the warpchat CLI, set at build time:
//
//	go build -ldflags="-X 'github.com/BioHazard786/Warpchat/cli/internal/version.Version=v1.0.0'"
var Version = "dev"
