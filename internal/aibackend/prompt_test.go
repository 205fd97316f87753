package aibackend_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/covgen/internal/aibackend"
)

func TestBuildPromptSubstitutesEveryPlaceholder(testInstance *testing.T) {
	prompt := aibackend.BuildPrompt(aibackend.Request{
		SourceCode:    "def add(a, b):\n    return a + b",
		ExistingTests: "import unittest",
		SourceCorpus:  "File: src/calc.py",
		TestFilePath:  "tests/test_calc.py",
	})

	require.True(testInstance, strings.HasPrefix(prompt, "\nYou are an expert software engineer specializing in testing.\n"))
	require.Contains(testInstance, prompt, "Relevant Source Files:\nFile: src/calc.py\n")
	require.Contains(testInstance, prompt, "Unit Test File Path (use this to generate the correct package name):\ntests/test_calc.py\n")
	require.Contains(testInstance, prompt, "Existing Unit Test File (if any):\nimport unittest\n")
	require.True(testInstance, strings.HasSuffix(prompt, "Source Code:\ndef add(a, b):\n    return a + b\n"))
	require.NotContains(testInstance, prompt, "{all_source_files}")
	require.NotContains(testInstance, prompt, "{unit_test_file_path}")
}

func TestBuildPromptDoesNotRescanSubstitutedValues(testInstance *testing.T) {
	prompt := aibackend.BuildPrompt(aibackend.Request{
		SourceCode:   "print('{unit_test}')",
		SourceCorpus: "{code}",
	})

	require.Contains(testInstance, prompt, "Relevant Source Files:\n{code}\n")
	require.Contains(testInstance, prompt, "Source Code:\nprint('{unit_test}')\n")
	require.Contains(testInstance, prompt, "Existing Unit Test File (if any):\n\n")
}
