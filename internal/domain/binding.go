package domain

// Steam app id of Counter-Strike 2
const ModCS2 = 730

type Server struct {
	ID      int
	Name    string
	Address string
	Mod     int
}

// ServerBinding says which stats driver and database back a game server
type ServerBinding struct {
	ID          int
	DriverName  string
	DatabaseRef string
	ExtraConfig string

	Server Server
}
