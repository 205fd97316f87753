package testgen

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

const (
	summaryFileHeaderConstant      = "File"
	summaryTestHeaderConstant      = "Test File"
	summaryOutcomeHeaderConstant   = "Outcome"
	summaryTotalTemplateConstant   = "Total Files %d"
	summaryWrittenTemplateConstant = "Written %d"
	summaryBuildTemplateConstant   = "Build %s"
	summaryBuildSkippedConstant    = "not run"
	summaryBuildPassedConstant     = "passed"
	summaryBuildFailedConstant     = "failed"
	summaryEmptyCellConstant       = "-"
)

// RenderSummary writes the per-file outcome table for result.
func RenderSummary(writer io.Writer, result RunResult) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader([]string{summaryFileHeaderConstant, summaryTestHeaderConstant, summaryOutcomeHeaderConstant})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, fileResult := range result.Files {
		testPath := fileResult.TestPath
		if len(testPath) == 0 {
			testPath = summaryEmptyCellConstant
		}
		table.Append([]string{fileResult.SourcePath, testPath, string(fileResult.Outcome)})
	}

	table.SetFooter([]string{
		fmt.Sprintf(summaryTotalTemplateConstant, len(result.Files)),
		fmt.Sprintf(summaryWrittenTemplateConstant, result.Count(OutcomeWritten)),
		fmt.Sprintf(summaryBuildTemplateConstant, buildStatus(result)),
	})
	table.Render()
}

func buildStatus(result RunResult) string {
	switch {
	case !result.Build.Ran:
		return summaryBuildSkippedConstant
	case result.Build.Passed:
		return summaryBuildPassedConstant
	default:
		return summaryBuildFailedConstant
	}
}
