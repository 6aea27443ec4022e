package classifier

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SeverityFile, "Symptom,weight\nitching,1\nskin_rash,3\nhigh fever,7\n")
	writeFile(t, dir, DescriptionFile, "Disease,Description\nMalaria,A mosquito-borne disease.\n")
	writeFile(t, dir, PrecautionFile, "Disease,Precaution_1,Precaution_2,Precaution_3,Precaution_4\n"+
		"Malaria,Consult nearest hospital,avoid oily food,,keep mosquitos out\n")

	m, err := LoadMetadata(dir)
	require.NoError(t, err)

	assert.Equal(t, "A mosquito-borne disease.", m.Description("malaria "))
	assert.Equal(t, []string{"Consult nearest hospital", "avoid oily food", "keep mosquitos out"}, m.Precautions("Malaria"))

	w, ok := m.Severity("high_fever")
	assert.True(t, ok)
	assert.Equal(t, 7, w)

	_, ok = m.Severity("unknown")
	assert.False(t, ok)
}

func TestLoadMetadata_MissingFilesTolerated(t *testing.T) {
	m, err := LoadMetadata(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m.Description("Malaria"))
	assert.Nil(t, m.Precautions("Malaria"))
}

func TestLoadMetadata_BadWeight(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, SeverityFile, "Symptom,weight\nitching,heavy\n")

	_, err := LoadMetadata(dir)
	require.Error(t, err)
}

func TestPredict_AttachesMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DescriptionFile, "Disease,Description\nMalaria,Parasitic.\n")
	writeFile(t, dir, PrecautionFile, "Disease,Precaution_1\nMalaria,Use nets\n")
	meta, err := LoadMetadata(dir)
	require.NoError(t, err)

	model, vocab, err := Decode([]byte(centroidArtifact))
	require.NoError(t, err)
	c := New(model, vocab, WithMetadata(meta))

	res, err := c.Predict(context.Background(), vectorFor(t, c, "high_fever"))
	require.NoError(t, err)
	assert.Equal(t, "Parasitic.", res.Description)
	assert.True(t, reflect.DeepEqual(res.Precautions, []string{"Use nets"}))
}
