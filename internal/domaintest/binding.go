package domaintest

import (
	"github.com/Amund211/serverstats/internal/domain"
)

type bindingBuilder struct {
	binding domain.ServerBinding
}

func (bb *bindingBuilder) WithExtraConfig(extraConfig string) *bindingBuilder {
	bb.binding.ExtraConfig = extraConfig
	return bb
}

func (bb *bindingBuilder) WithDatabaseRef(ref string) *bindingBuilder {
	bb.binding.DatabaseRef = ref
	return bb
}

func (bb *bindingBuilder) WithMod(mod int) *bindingBuilder {
	bb.binding.Server.Mod = mod
	return bb
}

func (bb *bindingBuilder) Build() domain.ServerBinding {
	return bb.binding
}

// NewBindingBuilder starts from a CS2 server bound to the "stats" database
func NewBindingBuilder(serverID int, driverName string) *bindingBuilder {
	return &bindingBuilder{
		binding: domain.ServerBinding{
			ID:          serverID,
			DriverName:  driverName,
			DatabaseRef: "stats",
			ExtraConfig: "{}",
			Server: domain.Server{
				ID:      serverID,
				Name:    "Server",
				Address: "203.0.113.1:27015",
				Mod:     domain.ModCS2,
			},
		},
	}
}
