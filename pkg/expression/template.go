// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expression

import (
	"github.com/tombee/exprkit/pkg/errors"
)

// segment is a lexed slice of expression text: literal text or the body of
// one ${...} part.
type segment struct {
	literal bool
	text    string
}

// splitTemplate lexes text into literal and ${...} segments. The scanner
// tracks brace depth and quoted strings, so map literals and strings
// containing '}' inside an expression body do not terminate it early.
func splitTemplate(text string) ([]segment, error) {
	var segments []segment
	i := 0
	start := 0

	for i < len(text) {
		if text[i] != '$' || i+1 >= len(text) || text[i+1] != '{' {
			i++
			continue
		}

		if i > start {
			segments = append(segments, segment{literal: true, text: text[start:i]})
		}

		body, end, err := scanBody(text, i+2)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment{text: body})
		i = end
		start = end
	}

	if start < len(text) || len(segments) == 0 {
		segments = append(segments, segment{literal: true, text: text[start:]})
	}

	return segments, nil
}

// scanBody scans one expression body beginning just after "${" at offset
// from. It returns the body and the offset just past the closing brace.
func scanBody(text string, from int) (string, int, error) {
	depth := 1
	var quote byte

	for i := from; i < len(text); i++ {
		ch := text[i]

		if quote != 0 {
			if ch == '\\' {
				i++ // skip escaped character
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}

		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				body := text[from:i]
				if len(body) == 0 {
					return "", 0, &errors.SyntaxError{
						Expression: text,
						Message:    "empty expression body",
					}
				}
				return body, i + 1, nil
			}
		}
	}

	return "", 0, &errors.SyntaxError{
		Expression: text,
		Message:    "unterminated ${ expression",
	}
}
