package app

const (
	Name            = "rezgo"
	ConfigFilename  = "config.json"
	DBFilename      = "captures.db"
	LogFilename     = "app.log"
	CapturesDirName = "captures"
)
