package domain

// Environment classifies the host runtime. The zero value is EnvironmentPending.
type Environment int

const (
	EnvironmentPending Environment = iota
	EnvironmentNativeMobileApp
	EnvironmentTvPackaged
	EnvironmentTvBrowser
	EnvironmentStandardWeb
)

var environmentNames = [...]string{
	"pending", "native_mobile_app", "tv_packaged", "tv_browser", "standard_web",
}

func (e Environment) String() string {
	if e >= 0 && int(e) < len(environmentNames) {
		return environmentNames[e]
	}
	return "unknown"
}

// Resolved reports whether classification has settled.
func (e Environment) Resolved() bool {
	return e != EnvironmentPending
}

func (e Environment) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}
