package config

// Storage selects the state backend.
type Storage struct {
	Backend string `toml:"Backend"`
}

// Log controls the optional rotating file sink. Stdout logging is always on.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

type RPC struct {
	AuthToken         string   `toml:"AuthToken"`
	JWTSecret         string   `toml:"JWTSecret"`
	JWTIssuer         string   `toml:"JWTIssuer"`
	RequestsPerMinute int      `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	AllowedOrigins    []string `toml:"AllowedOrigins"`
	ReadTimeoutSecs   int      `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs  int      `toml:"WriteTimeoutSecs"`
}

// Marketplace carries the commission, deposit and timeout policy applied by
// the marketplace engine.
type Marketplace struct {
	CommissionPolicy       string `toml:"CommissionPolicy"`
	Treasury               string `toml:"Treasury"`
	ArbitrationFeeBps      uint32 `toml:"ArbitrationFeeBps"`
	ListingDeposit         string `toml:"ListingDeposit"`
	DepositToken           string `toml:"DepositToken"`
	MaxWithdrawTimeoutSecs int64  `toml:"MaxWithdrawTimeoutSecs"`
}

type Pauses struct {
	Marketplace bool `toml:"Marketplace"`
	Vesting     bool `toml:"Vesting"`
	Arbitrator  bool `toml:"Arbitrator"`
	Identity    bool `toml:"Identity"`
}

type Indexer struct {
	DSN       string `toml:"DSN"`
	ExportDir string `toml:"ExportDir"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Headers  string `toml:"Headers"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`

	// Push interval for OTLP metrics; 0 keeps the exporter default.
	ExportIntervalSecs int `toml:"ExportIntervalSecs"`
}
