package vectorstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symptoms.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDataset(t *testing.T) {
	path := writeDataset(t, `symptom,conditions,follow_up_questions
headache,"migraine, tension headache",Does light make it worse?;How long does it last?
fever,influenza,How high is your temperature?
`)

	records, err := loadDataset(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "headache", records[0].Symptom)
	assert.Equal(t, "migraine, tension headache", records[0].Conditions)
	assert.Equal(t, []string{"Does light make it worse?", "How long does it last?"}, records[0].FollowUpQuestions)
	assert.Equal(t, []string{"How high is your temperature?"}, records[1].FollowUpQuestions)
}

func TestLoadDatasetMissingColumn(t *testing.T) {
	path := writeDataset(t, "symptom,conditions\nheadache,migraine\n")

	_, err := loadDataset(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "follow_up_questions")
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := loadDataset(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestLoadDatasetNoRows(t *testing.T) {
	path := writeDataset(t, "symptom,conditions,follow_up_questions\n")

	_, err := loadDataset(path)
	require.Error(t, err)
}

func TestParseQuestions(t *testing.T) {
	assert.Empty(t, parseQuestions(""))
	assert.Equal(t, []string{"a?", "b?"}, parseQuestions(" a? ; b? ;"))
}
