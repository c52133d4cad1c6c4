package templates

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmind/pkg/errors"
)

func TestParse_RendersByPath(t *testing.T) {
	p, err := Parse(fstest.MapFS{
		"prompts/hotel.tmpl": {Data: []byte(`ที่พักใน {{orDefault "ไทย" .Destination}}`)},
		"prompts/README.md":  {Data: []byte("ignored")},
	})
	require.NoError(t, err)

	out, err := p.Render("prompts/hotel", map[string]string{"Destination": "น่าน"})
	require.NoError(t, err)
	assert.Equal(t, "ที่พักใน น่าน", out)

	out, err = p.Render("prompts/hotel", map[string]string{"Destination": " "})
	require.NoError(t, err)
	assert.Equal(t, "ที่พักใน ไทย", out)

	_, err = p.Render("prompts/README", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestParse_RejectsBrokenTemplate(t *testing.T) {
	_, err := Parse(fstest.MapFS{"prompts/bad.tmpl": {Data: []byte("{{.Query")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompts/bad")
}

func TestRender_MissingKeyFails(t *testing.T) {
	p, err := Parse(fstest.MapFS{"prompts/q.tmpl": {Data: []byte("{{.Query}}")}})
	require.NoError(t, err)

	_, err = p.Render("prompts/q", map[string]string{})
	assert.Error(t, err)
}

func TestDefault_HandlerPrompts(t *testing.T) {
	p := Default()

	for _, id := range []string{
		"prompts/accommodation",
		"prompts/activity",
		"prompts/restaurant",
		"prompts/transportation",
		"prompts/trip_planner",
		"prompts/general",
		"prompts/system",
	} {
		_, ok := p.set[id]
		assert.True(t, ok, "embedded prompt %s missing", id)
	}

	out, err := p.Render("prompts/directive", map[string]string{
		"Prompt": "แนะนำที่พักในเชียงใหม่",
		"Marker": "===== แผนการเดินทางของคุณ =====",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "แนะนำที่พักในเชียงใหม่")
	assert.Contains(t, out, "===== แผนการเดินทางของคุณ =====")
}
