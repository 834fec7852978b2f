package flagx

import (
	"flag"
	"io"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "separate value",
			args:         []string{"-u", "http://proxy:8080", "-a", "actor-1"},
			allowedFlags: []string{"-u"},
			want:         []string{"-u", "http://proxy:8080"},
		},
		{
			name:         "equals form",
			args:         []string{"--config=truecam.json", "-d", "truecam.db"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=truecam.json"},
		},
		{
			name:         "nothing allowed yields empty slice",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "trailing flag without value",
			args:         []string{"-t"},
			allowedFlags: []string{"-t"},
			want:         []string{"-t"},
		},
		{
			name:         "next dash token is not a value",
			args:         []string{"-c", "--config=alt.json"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "--config=alt.json"},
		},
		{
			name:         "repeats keep order",
			args:         []string{"-b", "one", "-x", "-b", "two"},
			allowedFlags: []string{"-b"},
			want:         []string{"-b", "one", "-b", "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowedFlags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func Test_jsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/short.json"}
		assert.Equal(t, "/path/short.json", JsonConfigFlags())
	})

	t.Run("long -config with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", "/path/long.json"}
		assert.Equal(t, "/path/long.json", JsonConfigFlags())
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		os.Args = []string{"testbin", "-x", "1", "-y", "2"}
		assert.Empty(t, JsonConfigFlags())
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/1.json", "-config", "/path/2.json"}
		assert.Equal(t, "/path/2.json", JsonConfigFlags())
	})
}

func TestDeclaredFlags(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.String("a", "", "")
	fs.Int("t", 0, "")

	assert.ElementsMatch(t, []string{"-a", "--a", "-t", "--t"}, DeclaredFlags(fs))
}

func TestParseKnown(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	addr := fs.String("a", ":8080", "")
	timeout := fs.Int("t", 30, "")

	err := ParseKnown(fs, []string{"-x", "1", "-a", "127.0.0.1:9", "--t=5", "-c", "cfg.json"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9", *addr)
	assert.Equal(t, 5, *timeout)
}

func TestParseKnown_BadValue(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Int("t", 30, "")

	require.Error(t, ParseKnown(fs, []string{"-t", "soon"}))
}
