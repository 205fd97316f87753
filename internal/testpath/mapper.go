// Package testpath derives the canonical unit test location for a source file.
package testpath

import (
	"path"
	"strings"
)

const (
	pythonExtensionConstant     = ".py"
	cSourceExtensionConstant    = ".c"
	cHeaderExtensionConstant    = ".h"
	javaExtensionConstant       = ".java"
	kotlinExtensionConstant     = ".kt"
	swiftExtensionConstant      = ".swift"
	javaScriptExtensionConstant = ".js"
	typeScriptExtensionConstant = ".ts"
	scalaExtensionConstant      = ".scala"
	groovyExtensionConstant     = ".groovy"
	testPrefixConstant          = "test_"
	testSuffixConstant          = "Test"
	testsSuffixConstant         = "Tests"
	dotTestSuffixConstant       = ".test"
	specificationSuffixConstant = "Spec"
	extensionSeparatorConstant  = "."
)

type namingRule func(stem string, extension string) string

var namingRules = map[string]namingRule{
	pythonExtensionConstant:     prefixedName,
	cSourceExtensionConstant:    prefixedName,
	cHeaderExtensionConstant:    prefixedName,
	javaExtensionConstant:       suffixedName(testSuffixConstant),
	kotlinExtensionConstant:     suffixedName(testSuffixConstant),
	swiftExtensionConstant:      suffixedName(testsSuffixConstant),
	javaScriptExtensionConstant: suffixedName(dotTestSuffixConstant),
	typeScriptExtensionConstant: suffixedName(dotTestSuffixConstant),
	scalaExtensionConstant:      suffixedName(specificationSuffixConstant),
	groovyExtensionConstant:     suffixedName(specificationSuffixConstant),
}

// SupportedExtensions lists the extensions Map can translate, with their leading dot.
func SupportedExtensions() []string {
	return []string{
		pythonExtensionConstant,
		cSourceExtensionConstant,
		cHeaderExtensionConstant,
		javaExtensionConstant,
		kotlinExtensionConstant,
		swiftExtensionConstant,
		javaScriptExtensionConstant,
		typeScriptExtensionConstant,
		scalaExtensionConstant,
		groovyExtensionConstant,
	}
}

// Map returns the test file path for sourcePath and true, or "" and false when no mapping exists.
//
// The sourceRoot check is a plain string prefix match: a root of "src" also accepts "src2/a.py".
// Callers keep separators consistent between the root and the listed paths.
func Map(sourcePath string, sourceRoot string, testRoot string) (string, bool) {
	if !strings.HasPrefix(sourcePath, sourceRoot) {
		return "", false
	}

	candidate := testRoot + strings.TrimPrefix(sourcePath, sourceRoot)
	fileName := path.Base(candidate)
	extension := path.Ext(fileName)
	stem := strings.TrimSuffix(fileName, extension)
	if len(stem) == 0 || extension == extensionSeparatorConstant {
		// dot files such as ".py" carry no extension
		return "", false
	}

	rule, supported := namingRules[extension]
	if !supported {
		return "", false
	}
	return path.Join(path.Dir(candidate), rule(stem, extension)), true
}

func prefixedName(stem string, extension string) string {
	return testPrefixConstant + stem + extension
}

func suffixedName(suffix string) namingRule {
	return func(stem string, extension string) string {
		return stem + suffix + extension
	}
}
