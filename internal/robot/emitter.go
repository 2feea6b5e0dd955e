// Package robot renders execution plans into Robot Framework test scripts.
package robot

import (
	"fmt"
	"strings"

	"github.com/rendis/uiflow/internal/compiler"
	"github.com/rendis/uiflow/pkg/schema"
)

// Bounded waits applied before interacting with an element.
const (
	clickWaitTimeout = "10s"
	inputWaitTimeout = "5s"
)

// ArtifactName is the fixed filename of the generated script, overwritten
// on every run.
const ArtifactName = "generated.robot"

// Emit renders a plan into a complete, self-contained Robot Framework
// script. Emit is total: unsupported node types degrade to a comment line
// and missing parameters degrade to empty substitutions, so script
// generation itself never fails.
func Emit(plan *compiler.Plan) string {
	lines := []string{
		"*** Settings ***",
		"Library    SeleniumLibrary",
		"",
		"*** Test Cases ***",
		"Generated Workflow",
		"    Open Browser    about:blank    Chrome",
	}

	for _, node := range plan.Nodes {
		lines = append(lines, statements(node)...)
	}

	lines = append(lines, "    Close Browser")
	return strings.Join(lines, "\n") + "\n"
}

// statements maps one node to its script statements. Type matching is
// case-insensitive; "Navigate" and "navigate" emit the same statement.
func statements(node schema.Node) []string {
	switch schema.NodeType(strings.ToLower(string(node.Type))) {
	case schema.NodeTypeNavigate:
		p := node.NavigateParams()
		return []string{
			fmt.Sprintf("    Go To    %s", p.URL),
		}

	case schema.NodeTypeClick:
		p := node.ClickParams()
		return []string{
			fmt.Sprintf("    Wait Until Page Contains Element    %s    timeout=%s", p.Selector, clickWaitTimeout),
			fmt.Sprintf("    Click Element    %s", p.Selector),
		}

	case schema.NodeTypeInput:
		p := node.InputParams()
		return []string{
			fmt.Sprintf("    Wait Until Element Is Visible    %s    timeout=%s", p.Selector, inputWaitTimeout),
			fmt.Sprintf("    Input Text    %s    %s", p.Selector, p.Text),
		}

	case schema.NodeTypeParse:
		p := node.ParseParams()
		if p.Attribute == schema.DefaultAttribute {
			return []string{
				fmt.Sprintf("    @{%s}=    Get Texts    %s", p.VariableName, p.Selector),
			}
		}
		return []string{
			fmt.Sprintf("    @{%s}=    Get Element Attributes    %s    %s", p.VariableName, p.Selector, p.Attribute),
		}

	case schema.NodeTypeStore:
		p := node.StoreParams()
		return []string{
			fmt.Sprintf("    Append List To File    %s    ${%s}", p.Filename, p.VariableName),
		}

	default:
		return []string{
			fmt.Sprintf("    # Unsupported node type: %s", node.Type),
		}
	}
}
