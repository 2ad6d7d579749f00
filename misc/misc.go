// Package misc keeps program identity, values are set by the linker.
package misc

var (
	appName = "xpo"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
