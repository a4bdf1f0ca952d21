package hdds

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/config"
)

// withTestConfig points config.Keys at an ephemeral-ish loopback
// locator for the duration of one test, restoring the previous value
// on cleanup (the same direct-mutation pattern internal/config's own
// tests use for the package-level Keys var).
func withTestConfig(t *testing.T, unicast string) {
	t.Helper()
	prev := config.Keys
	config.Keys = config.ProgramConfig{
		VendorID:       "010f",
		Listen:         config.ListenConfig{Unicast: []string{unicast}},
		DefaultProfile: "volatile.default",
	}
	t.Cleanup(func() { config.Keys = prev })
}

func TestCreateParticipantBindsAndDestroys(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17500")

	p, err := CreateParticipant(7, "")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NoError(t, p.Destroy())

	// destroying twice is a no-op, not an error
	require.NoError(t, p.Destroy())
}

func TestCreateParticipantRejectsUnknownListenScheme(t *testing.T) {
	withTestConfig(t, "shm://not-udp")

	_, err := CreateParticipant(7, "")
	require.Error(t, err)
}

func TestOperationsFailAfterDestroy(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17501")

	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	require.NoError(t, p.Destroy())

	_, err = p.CreateWriter(Topic{Name: "t", TypeName: "T"}, "")
	require.Error(t, err)

	_, err = p.CreateReader(Topic{Name: "t", TypeName: "T"}, "")
	require.Error(t, err)

	_, err = p.CreateWaitset()
	require.Error(t, err)
}

func TestParseLocatorRejectsNonUDP(t *testing.T) {
	_, err := parseLocator("tcpv4://127.0.0.1:7400")
	require.Error(t, err)
}

func TestParseLocatorParsesValidUDP(t *testing.T) {
	loc, err := parseLocator("udpv4://127.0.0.1:7400")
	require.NoError(t, err)
	require.EqualValues(t, 7400, loc.Port)
}
