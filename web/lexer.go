package web

import "github.com/alecthomas/chroma/v2"

// ircLexer tokenizes the transcript line shapes so chroma styles can
// color them: headers, event lines, actions and messages each get their
// own token family.
var ircLexer = chroma.MustNewLexer(
	&chroma.Config{
		Name:      "IRC logs",
		Aliases:   []string{"irclogs"},
		Filenames: []string{"*.log"},
	},
	func() chroma.Rules {
		return chroma.Rules{
			"root": {
				{Pattern: `---[^\n]*\n?`, Type: chroma.CommentPreproc, Mutator: nil},
				{Pattern: `(\d{2}:\d{2})( )(-!-[^\n]*)(\n?)`, Type: chroma.ByGroups(
					chroma.Comment, chroma.Whitespace, chroma.CommentSingle, chroma.Whitespace), Mutator: nil},
				{Pattern: `(\d{2}:\d{2})( )( \* )(\S+)([^\n]*)(\n?)`, Type: chroma.ByGroups(
					chroma.Comment, chroma.Whitespace, chroma.Keyword, chroma.NameFunction,
					chroma.Text, chroma.Whitespace), Mutator: nil},
				{Pattern: `(\d{2}:\d{2})( )(<)([^>\n]+)(>)([^\n]*)(\n?)`, Type: chroma.ByGroups(
					chroma.Comment, chroma.Whitespace, chroma.Punctuation, chroma.NameTag,
					chroma.Punctuation, chroma.Text, chroma.Whitespace), Mutator: nil},
				{Pattern: `[^\n]+\n?`, Type: chroma.Text, Mutator: nil},
				{Pattern: `\n`, Type: chroma.Whitespace, Mutator: nil},
			},
		}
	},
)
