package models

// TesterArgs holds the raw command line arguments for one invocation.
type TesterArgs struct {
	Filename       string
	InDir          string
	InExt          string
	OutDir         string
	OutExt         string
	IODir          string
	Timeout        int // seconds
	CompileTimeout int // seconds
	CompileCommand string
	Sio2jail       bool
	MemoryLimit    uint64 // KiB, 0 means not set
	Generate       bool
	Checker        string
	ConfigPath     string
	Verbose        bool
}
