package main

import "github.com/stupid-simple/assetpipe/config"

type ProjectFlags struct {
	Config  string `help:"config file path" short:"c" xor:"project"`
	Project string `help:"project directory, used when no config file is given" short:"p" xor:"project"`
}

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Import  struct {
		ProjectFlags `embed:""`

		Cleanup bool `help:"remove stale registry entries and compiled files once the imports are done"`
	} `cmd:"" help:"Import every stale source file and exit."`
	Watch struct {
		ProjectFlags `embed:""`

		DryRun bool `help:"don't delete anything during scheduled cleanups, just print the output"`
	} `cmd:"" help:"Run the pipeline: import changed files as they change."`
	Check struct {
		ProjectFlags `embed:""`

		Paths []string `arg:"" help:"source files to check, as file paths or virtual paths such as $MAIN/cube.fbx"`
	} `cmd:"" help:"Report whether source files need to be imported."`
	Cleanup struct {
		ProjectFlags `embed:""`

		DryRun bool `help:"don't delete anything, just print the output"`
	} `cmd:"" help:"Remove registry entries and compiled files no source declares."`
	List struct {
		ProjectFlags `embed:""`

		Type string `help:"only list assets of this type" short:"t"`
		Path string `help:"only list assets produced from this mounted path, e.g. $MAIN/cube.fbx"`
	} `cmd:"" help:"List registered assets."`
	Pack struct {
		ProjectFlags `embed:""`

		Dest      string              `help:"destination directory path" short:"D"`
		Prefix    string              `help:"pack file prefix"`
		MaxSize   config.SizeArgument `help:"maximum uncompressed bytes per pack part"`
		Overwrite bool                `help:"replace an existing pack with the same prefix"`
		DryRun    bool                `help:"don't write any files, just print the output"`
	} `cmd:"" help:"Export the compiled assets into an asset pack."`
	Unpack struct {
		ProjectFlags `embed:""`

		Directory string `help:"pack directory file path" short:"d" required:"" type:"existingfile"`
		DryRun    bool   `help:"don't write any files, just print the output"`
	} `cmd:"" help:"Restore compiled assets from an asset pack."`
	History struct {
		ProjectFlags `embed:""`

		Failed bool   `help:"only show failed imports"`
		Path   string `help:"only show imports of this source file"`
		Limit  int    `help:"maximum number of imports to show" default:"20"`
	} `cmd:"" help:"Show the import journal."`
}

func loadConfig(flags ProjectFlags) (*config.Config, error) {
	if flags.Config != "" {
		return config.LoadFromFile(flags.Config)
	}
	project := flags.Project
	if project == "" {
		project = "."
	}
	return config.Default(project)
}
