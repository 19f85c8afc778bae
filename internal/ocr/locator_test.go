package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamup/ui-locator/internal/frame"
)

type fakeEngine struct {
	fragments []Fragment
	err       error
	calls     int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(ctx context.Context, f *frame.Frame) ([]Fragment, error) {
	e.calls++
	return e.fragments, e.err
}

func testFrame() *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(0, 0, color.White)
	return frame.New(img, "test")
}

func frag(text string, conf float64, x, y int) Fragment {
	return Fragment{Text: text, Confidence: conf, Box: image.Rect(x, y, x+40, y+10)}
}

func TestExtractText_FiltersEmptyAndLowConfidence(t *testing.T) {
	engine := &fakeEngine{fragments: []Fragment{
		frag("Email", 90, 10, 10),
		frag("   ", 99, 10, 30),
		frag("noise", 20, 10, 50),
		frag(" Password ", 75, 10, 70),
	}}
	l := NewLocator(engine, nil)

	matches, err := l.ExtractText(context.Background(), testFrame(), 60)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "Email", matches[0].Text)
	assert.Equal(t, BBox{X: 10, Y: 10, W: 40, H: 10}, matches[0].BBox)
	assert.Equal(t, frame.Point{X: 30, Y: 15}, matches[0].Center)
	assert.Equal(t, "Password", matches[1].RawText)
}

func TestExtractText_EngineError(t *testing.T) {
	l := NewLocator(&fakeEngine{err: errors.New("boom")}, nil)

	_, err := l.ExtractText(context.Background(), testFrame(), 0)
	assert.ErrorContains(t, err, "boom")
}

func TestFindText_CaseInsensitiveByDefault(t *testing.T) {
	l := NewLocator(&fakeEngine{fragments: []Fragment{frag("email", 88, 0, 0)}}, nil)

	m, err := l.FindText(context.Background(), testFrame(), "Email", DefaultFindOptions())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Email", m.Text, "tagged with the supplied label")
	assert.Equal(t, "email", m.RawText)
}

func TestFindText_CaseSensitive(t *testing.T) {
	l := NewLocator(&fakeEngine{fragments: []Fragment{frag("email", 88, 0, 0)}}, nil)

	opts := DefaultFindOptions()
	opts.CaseSensitive = true
	m, err := l.FindText(context.Background(), testFrame(), "Email", opts)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindText_Partial(t *testing.T) {
	engine := &fakeEngine{fragments: []Fragment{frag("login", 70, 0, 0)}}
	l := NewLocator(engine, nil)

	opts := DefaultFindOptions()
	opts.MinConfidence = 70
	opts.AllowPartial = true
	m, err := l.FindText(context.Background(), testFrame(), "log", opts)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "log", m.Text)

	opts.AllowPartial = false
	m, err = l.FindText(context.Background(), testFrame(), "log", opts)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindText_BelowThreshold(t *testing.T) {
	l := NewLocator(&fakeEngine{fragments: []Fragment{frag("login", 50, 0, 0)}}, nil)

	m, err := l.FindText(context.Background(), testFrame(), "login", DefaultFindOptions())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindText_AlternativesTaggedWithSuppliedLabel(t *testing.T) {
	l := NewLocator(&fakeEngine{fragments: []Fragment{
		frag("Welcome back", 95, 0, 0),
		frag("E-MAIL ADDRESS", 95, 0, 20),
	}}, nil)

	opts := DefaultFindOptions()
	opts.Alternatives = []string{"E-mail", "Email"}
	m, err := l.FindText(context.Background(), testFrame(), "Username", opts)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "E-mail", m.Text)
	assert.Equal(t, 20, m.BBox.Y)
}

func TestMatchText_ExactBeforePartialWithinFragment(t *testing.T) {
	fragments := []Match{{RawText: "sign in", Confidence: 90}}

	opts := DefaultFindOptions()
	opts.Alternatives = []string{"Sign In"}
	m := MatchText(fragments, "sign", opts)
	require.NotNil(t, m)
	assert.Equal(t, "Sign In", m.Text, "equality with a later candidate beats containment of the query")
}

func TestMatchText_FirstFragmentInScanOrderWins(t *testing.T) {
	fragments := []Match{
		{RawText: "Log in with Google", Confidence: 90, Center: frame.Point{X: 1, Y: 1}},
		{RawText: "Log in", Confidence: 90, Center: frame.Point{X: 2, Y: 2}},
	}

	m := MatchText(fragments, "log in", DefaultFindOptions())
	require.NotNil(t, m)
	assert.Equal(t, frame.Point{X: 1, Y: 1}, m.Center)
}

func TestMatchText_EmptyCandidates(t *testing.T) {
	assert.Nil(t, MatchText([]Match{{RawText: "x", Confidence: 100}}, "  ", DefaultFindOptions()))
}

func TestFindAny_PriorityOrder(t *testing.T) {
	engine := &fakeEngine{fragments: []Fragment{
		frag("Log In", 99, 0, 0),
		frag("Sign In", 65, 0, 40),
	}}
	l := NewLocator(engine, nil)

	m, err := l.FindAny(context.Background(), testFrame(), []string{"Sign In", "Log In"}, 60)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Sign In", m.Text)
	assert.Equal(t, 1, engine.calls, "one OCR pass for all queries")
}

func TestFindAny_NoHit(t *testing.T) {
	l := NewLocator(&fakeEngine{fragments: []Fragment{frag("Cancel", 99, 0, 0)}}, nil)

	m, err := l.FindAny(context.Background(), testFrame(), []string{"Sign In", "Log In"}, 60)
	require.NoError(t, err)
	assert.Nil(t, m)
}
