// Package validation implements structural checks over workflow
// configurations: cycle detection, reachability, handoff and tool
// constraints, hierarchy structure, and model validity.
//
// Checks are independent and composable so callers can run a subset
// without forking logic. Findings are returned as data, one string per
// defect, always naming the offending node, field, tool, or edge; the
// caller decides whether to reject, repair, or warn.
package validation
