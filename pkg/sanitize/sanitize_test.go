package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-depfinder/pkg/pkgdata"
)

func TestSanitize(t *testing.T) {
	tables, err := pkgdata.Parse([]byte(`
_PACKAGE_MAPPING:
  sklearn: scikit-learn
  yaml: pyyaml
_FAKE_PACKAGES:
  matplotlib: [mpl_toolkits]
`))
	require.NoError(t, err)

	tests := []struct {
		name     string
		pkg      string
		in       map[string][]string
		expected map[string][]string
	}{
		{
			name:     "rename",
			in:       map[string][]string{"required": {"sklearn", "numpy"}},
			expected: map[string][]string{"required": {"numpy", "scikit-learn"}},
		},
		{
			name:     "drop fakes and empty buckets",
			in:       map[string][]string{"required": {"numpy"}, "questionable": {"mpl_toolkits"}},
			expected: map[string][]string{"required": {"numpy"}},
		},
		{
			name:     "drop self import",
			pkg:      "mypkg",
			in:       map[string][]string{"required": {"mypkg", "yaml"}, "relative": {"core"}},
			expected: map[string][]string{"required": {"pyyaml"}, "relative": {"core"}},
		},
		{
			name:     "collapse synonyms",
			in:       map[string][]string{"required": {"yaml", "pyyaml"}},
			expected: map[string][]string{"required": {"pyyaml"}},
		},
		{
			name:     "empty input",
			in:       map[string][]string{},
			expected: map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.in, tables, tt.pkg))
		})
	}
}

func TestSanitizeDeterministic(t *testing.T) {
	tables := pkgdata.MustBundled()
	in := map[string][]string{
		"required":     {"yaml", "cv2", "PIL", "numpy"},
		"questionable": {"sklearn", "mpl_toolkits"},
	}
	first := Sanitize(in, tables, "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Sanitize(in, tables, ""))
	}
	assert.Equal(t, []string{"numpy", "opencv", "pillow", "pyyaml"}, first["required"])
	assert.Equal(t, []string{"scikit-learn"}, first["questionable"])
}
