package core

// Config is runtime configuration for the CLI.
type Config struct {
	Broker    string
	TopicBase string
	Node      string
	UserID    string
	UserName  string
	Aliases   map[string]string
}
