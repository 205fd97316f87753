package aibackend

import "strings"

const (
	sourceCorpusPlaceholderConstant  = "{all_source_files}"
	testFilePathPlaceholderConstant  = "{unit_test_file_path}"
	existingTestsPlaceholderConstant = "{unit_test}"
	sourceCodePlaceholderConstant    = "{code}"
	systemPromptConstant             = "you are a code testing expert"
)

const testGenerationPromptTemplateConstant = `
You are an expert software engineer specializing in testing.
Your task is to generate a comprehensive unit test suite for the given code.
If an existing unit test file is provided, you should add or improve the tests in it.
If no unit test file is provided, you should create a new one from scratch.

- Analyze the provided code to understand its functionality, inputs, and outputs.
- Create test cases that cover all execution paths, including edge cases and error conditions.
- Ensure the generated tests are well-structured, readable, and follow best practices for the language.
- Only return the complete code for the unit test file. Do not include any explanations, introductory text, or markdown formatting.

Relevant Source Files:
{all_source_files}

Unit Test File Path (use this to generate the correct package name):
{unit_test_file_path}

Existing Unit Test File (if any):
{unit_test}

Source Code:
{code}
`

// BuildPrompt renders the test generation prompt. Substituted values are inserted verbatim and
// never rescanned for placeholders.
func BuildPrompt(request Request) string {
	replacer := strings.NewReplacer(
		sourceCorpusPlaceholderConstant, request.SourceCorpus,
		testFilePathPlaceholderConstant, request.TestFilePath,
		existingTestsPlaceholderConstant, request.ExistingTests,
		sourceCodePlaceholderConstant, request.SourceCode,
	)
	return replacer.Replace(testGenerationPromptTemplateConstant)
}
