package config

// Config holds app configuration
type Config struct {
	// GameRegion is the game region/edition (gms, kms, sea, tms, bms)
	// Used to select the keystream nonce
	GameRegion string `mapstructure:"game_region"`

	// GameVersion is the patch version number (e.g., "83", "176")
	// Used to calculate the version hash for offset decryption
	// If not provided, the parser will attempt to bruteforce it
	GameVersion int `mapstructure:"game_version"`

	InputFiles       []string `mapstructure:"input"`
	ManifestFile     string   `mapstructure:"manifest"`
	OutputFile       string   `mapstructure:"output"`
	SpritesOutputDir string   `mapstructure:"sprites_dir"`
	SoundsOutputDir  string   `mapstructure:"sounds_dir"`

	// Path limits the export to one subtree, e.g. "Mob/100100.img/stand"
	Path string `mapstructure:"path"`

	Concurrency      int `mapstructure:"concurrency"`
	MaxReferenceHops int `mapstructure:"max_reference_hops"`

	DryRun       bool   `mapstructure:"dry_run"`
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`
}
