package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFromTSV_DropsHeaderRow(t *testing.T) {
	path := writeTemp(t, "in.tsv",
		"tier\tstart\tend\ttext\n"+
			"speaker1\t0\t1.25\tthe cat\n"+
			"speaker1\t1.25\t2.5\tsat\n")

	rows, err := FromTSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "speaker1", rows[0].Tier)
	assert.InDelta(t, 1.25, rows[0].End, 1e-4)
	assert.Equal(t, "sat", rows[1].Text)
}

func TestFromTSV_DecimalComma(t *testing.T) {
	path := writeTemp(t, "in.tsv", "speaker1\t0,5\t1,75\thej\n")

	rows, err := FromTSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.5, rows[0].Start, 1e-4)
	assert.InDelta(t, 1.75, rows[0].End, 1e-4)
}

func TestFromTSV_RejectsEndBeforeStart(t *testing.T) {
	path := writeTemp(t, "in.tsv", "speaker1\t2.0\t1.0\tbackwards\n")

	_, err := FromTSV(path)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tsv", verr.Label)
}

func TestFromTSV_RejectsShortRow(t *testing.T) {
	path := writeTemp(t, "in.tsv", "speaker1\t0\t1\tok\nspeaker1\t2\n")

	_, err := FromTSV(path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Line)
}

func TestFromEAF(t *testing.T) {
	const eaf = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="1250"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="2500"/>
  </TIME_ORDER>
  <TIER TIER_ID="speaker1">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION TIME_SLOT_REF1="ts2" TIME_SLOT_REF2="ts3">
        <ANNOTATION_VALUE>sat</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>the cat</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`
	path := writeTemp(t, "in.eaf", eaf)

	rows, err := FromEAF(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// chronological within the tier even though the source was not
	assert.Equal(t, "the cat", rows[0].Text)
	assert.InDelta(t, 0, rows[0].Start, 1e-4)
	assert.InDelta(t, 1.25, rows[0].End, 1e-4)
	assert.Equal(t, "sat", rows[1].Text)
	assert.InDelta(t, 2.5, rows[1].End, 1e-4)
}

func TestFromEAF_UnknownSlotRejected(t *testing.T) {
	const eaf = `<?xml version="1.0"?>
<ANNOTATION_DOCUMENT>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
  </TIME_ORDER>
  <TIER TIER_ID="speaker1">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts9">
        <ANNOTATION_VALUE>x</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`
	path := writeTemp(t, "in.eaf", eaf)

	_, err := FromEAF(path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "eaf", verr.Label)
}

func TestBuildTextGrid_RoundTrip(t *testing.T) {
	rows := []Row{
		{Tier: "speaker1", Start: 0, End: 1.25, Text: "the cat"},
		{Tier: "speaker1", Start: 1.25, End: 2.5, Text: "sat"},
		{Tier: "speaker2", Start: 0.5, End: 3.0, Text: "uh huh"},
	}

	doc := BuildTextGrid(rows)
	require.Len(t, doc.Tiers, 2)
	assert.InDelta(t, 0, doc.XMin, 1e-4)
	assert.InDelta(t, 3.0, doc.XMax, 1e-4)

	back := TextGridToRows(doc)
	require.Len(t, back, len(rows))
	for i, row := range rows {
		assert.Equal(t, row.Tier, back[i].Tier)
		assert.InDelta(t, row.Start, back[i].Start, 1e-4)
		assert.InDelta(t, row.End, back[i].End, 1e-4)
		assert.Equal(t, row.Text, back[i].Text)
	}
}

func TestBuildTextGrid_NormalizesComposedCharacters(t *testing.T) {
	// "e" + combining acute accent should become the composed "é".
	rows := []Row{{Tier: "t", Start: 0, End: 1, Text: "café"}}

	doc := BuildTextGrid(rows)
	assert.Equal(t, "café", doc.Tiers[0].Intervals[0].Text)
}
