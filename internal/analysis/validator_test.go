// File: internal/analysis/validator_test.go
package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
)

func validateSource(t *testing.T, source string) *schemas.ValidationReport {
	t.Helper()
	report, err := NewPythonValidator(zap.NewNop()).Validate(context.Background(), source)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func defectMessages(report *schemas.ValidationReport) []string {
	var out []string
	for _, d := range report.Defects {
		out = append(out, d.Message)
	}
	return out
}

func TestValidate_CleanSource(t *testing.T) {
	t.Parallel()

	report := validateSource(t, "import math\n\nx = 2\nprint(math.sqrt(x))\n")

	assert.True(t, report.Success)
	assert.Empty(t, report.Defects)
	require.NotNil(t, report.Context)
	assert.NotNil(t, report.Context.Root)
	assert.Equal(t, []string{"module"}, report.Context.ScopeChain)
}

func TestValidate_UndefinedName(t *testing.T) {
	t.Parallel()

	report := validateSource(t, "x = 1\nprint(y)\n")

	assert.False(t, report.Success)
	require.Len(t, report.Defects, 1)
	d := report.Defects[0]
	assert.Equal(t, schemas.DefectNameResolution, d.Kind)
	assert.Equal(t, "name 'y' is not defined", d.Message)
	assert.Equal(t, 2, d.Location.Line)
	assert.NotEmpty(t, d.ContextLines)
}

func TestValidate_SyntaxError(t *testing.T) {
	t.Parallel()

	report := validateSource(t, "def f(\n    pass\n")

	assert.False(t, report.Success)
	require.NotEmpty(t, report.Defects)
	assert.Equal(t, schemas.DefectSyntax, report.Defects[0].Kind)
}

func TestValidate_Bindings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
	}{
		{name: "assignment", source: "total = 0\nprint(total)\n"},
		{name: "function and parameters", source: "def add(a, b):\n    return a + b\n\nprint(add(1, 2))\n"},
		{name: "class name", source: "class Widget:\n    pass\n\nw = Widget()\n"},
		{name: "import binds module name", source: "import math\nprint(math.pi)\n"},
		{name: "aliased import", source: "import json as j\nprint(j.dumps([]))\n"},
		{name: "for loop target", source: "for item in range(3):\n    print(item)\n"},
		{name: "builtins resolve", source: "print(len(str(42)))\n"},
		{name: "tuple unpacking", source: "a, b = 1, 2\nprint(a + b)\n"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			report := validateSource(t, tc.source)
			assert.True(t, report.Success, "unexpected defects: %v", defectMessages(report))
		})
	}
}

func TestValidate_AttributeNamesAreNotUsages(t *testing.T) {
	t.Parallel()

	// "sqrt" only appears as an attribute; it must not be flagged.
	report := validateSource(t, "import math\nprint(math.sqrt(4))\n")
	assert.True(t, report.Success, "unexpected defects: %v", defectMessages(report))
}

func TestValidate_ScopeChainInsideFunction(t *testing.T) {
	t.Parallel()

	report := validateSource(t, "def main():\n    x = 1\n    print(y)\n")

	require.False(t, report.Success)
	require.NotNil(t, report.Context)
	assert.Equal(t, []string{"module", "function:main"}, report.Context.ScopeChain)
}

func TestValidate_EachNameReportedOnce(t *testing.T) {
	t.Parallel()

	report := validateSource(t, "print(ghost)\nprint(ghost)\nprint(ghost)\n")

	require.Len(t, report.Defects, 1)
	assert.Equal(t, "name 'ghost' is not defined", report.Defects[0].Message)
}

func TestValidate_ArenaTreeNavigation(t *testing.T) {
	t.Parallel()

	report := validateSource(t, "def main():\n    x = 1\n")
	require.NotNil(t, report.Context.Root)

	root := report.Context.Root
	assert.Equal(t, "module", root.Kind())
	assert.Nil(t, root.Parent())
	require.Greater(t, root.ChildCount(), 0)

	child := root.Child(0)
	require.NotNil(t, child)
	assert.Equal(t, "function_definition", child.Kind())

	// The parent edge walks back without ever producing a cycle.
	assert.Equal(t, "module", child.Parent().Kind())
	assert.Nil(t, root.Child(root.ChildCount()))
}
