/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import "strings"

// NormalizeText converts an issue or comment body to plain text. Cloud (REST
// v3) returns an Atlassian Document Format tree; Server/DC (v2) returns a
// plain or wiki-markup string, which passes through unchanged. The function
// is total: unknown node tags are ignored and empty/absent content yields "".
func NormalizeText(v any) string {
    switch doc := v.(type) {
    case nil:
        return ""
    case string:
        return doc
    case map[string]any:
        blocks := collectBlocks(doc)
        return strings.Join(blocks, "\n")
    default:
        return ""
    }
}

// collectBlocks walks a node's content array and returns one string per
// block-level child, in document order.
func collectBlocks(node map[string]any) []string {
    content, _ := node["content"].([]any)
    var blocks []string
    for _, c := range content {
        child, ok := c.(map[string]any)
        if !ok { continue }
        typ, _ := child["type"].(string)
        switch typ {
        case "paragraph", "heading", "blockquote", "codeBlock":
            blocks = append(blocks, inlineText(child))
        case "bulletList", "orderedList":
            blocks = append(blocks, collectBlocks(child)...)
        case "listItem":
            // A list item may hold several blocks; its text becomes one
            // "- "-prefixed line.
            blocks = append(blocks, "- "+strings.Join(collectBlocks(child), " "))
        case "text":
            // Stray leaf directly under a container.
            if s, ok := child["text"].(string); ok { blocks = append(blocks, s) }
        default:
            // Unknown tags (media, panels, mentions, ...) contribute nothing.
        }
    }
    return blocks
}

// inlineText concatenates the text-bearing leaves of one block. Styling
// marks are discarded; hardBreak becomes a newline.
func inlineText(node map[string]any) string {
    content, _ := node["content"].([]any)
    var b strings.Builder
    for _, c := range content {
        child, ok := c.(map[string]any)
        if !ok { continue }
        typ, _ := child["type"].(string)
        switch typ {
        case "text":
            if s, ok := child["text"].(string); ok { b.WriteString(s) }
        case "hardBreak":
            b.WriteString("\n")
        case "emoji":
            if m, ok := child["attrs"].(map[string]any); ok {
                if s, ok := m["text"].(string); ok { b.WriteString(s) }
            }
        default:
            // Inline wrappers keep their children's text.
            if _, has := child["content"]; has { b.WriteString(inlineText(child)) }
        }
    }
    return b.String()
}
