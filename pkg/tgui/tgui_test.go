package tgui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscAndWrap(t *testing.T) {
	assert.Equal(t, H("&lt;b&gt; &amp; x"), Esc("<b> & x"))
	assert.Equal(t, H("<b>a&lt;b</b>"), B("a<b"))
	assert.Equal(t, H("<code>id</code>"), Code("id"))
	assert.Equal(t, H("<pre>1 &lt; 2</pre>"), Pre("1 < 2"))
}

func TestJoinH(t *testing.T) {
	assert.Equal(t, H("a · <b>b</b>"), JoinH(" · ", Raw("a"), "", B("b"), " "))
	assert.Equal(t, H(""), JoinH(","))
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncRunes("héllo", 5))
	assert.Equal(t, "hé…", TruncRunes("héllo", 3))
	assert.Equal(t, "", TruncRunes("héllo", 0))
	assert.Equal(t, "…", TruncRunes("ab", 1))
}
