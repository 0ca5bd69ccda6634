package holyiot

// Record is the read-only view of a BLE advertisement the decoder needs.
// Scanner types satisfy it directly so the decoder does not depend on any
// one BLE stack.
type Record interface {
	Address() string
	ServiceData() map[string][]byte
	Name() string
}

// Advertisement is a plain Record, used by the CLI and in tests.
type Advertisement struct {
	Addr      string
	LocalName string
	Services  map[string][]byte
}

func (a Advertisement) Address() string                { return a.Addr }
func (a Advertisement) ServiceData() map[string][]byte { return a.Services }
func (a Advertisement) Name() string                   { return a.LocalName }
