// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package script

import (
	"strings"

	"github.com/packetd/probed/errs"
)

// Parse turns script text into a Script. Any violation raises a
// *errs.Error of kind SyntaxError carrying a 1-based line number.
func Parse(src string) (*Script, error) {
	lines := scanLines([]byte(src))
	p := &blockParser{lines: lines}
	return p.parse()
}

type blockParser struct {
	lines []rawLine
	pos   int
}

func (p *blockParser) cur() (rawLine, bool) {
	if p.pos >= len(p.lines) {
		return rawLine{}, false
	}
	return p.lines[p.pos], true
}

func (p *blockParser) parse() (*Script, error) {
	script := &Script{}

	for {
		line, ok := p.cur()
		if !ok {
			break
		}
		toks, err := splitTokens(line.Number, line.Text)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			p.pos++
			continue
		}
		marker := strings.ToUpper(toks[0].Text)

		switch marker {
		case "PACKET_START":
			p.pos++
			block, err := p.parseSimpleBlock(BlockPacket, line.Number, "PACKET_END")
			if err != nil {
				return nil, err
			}
			script.Blocks = append(script.Blocks, block)

		case "RESPONSE_START":
			p.pos++
			block, err := p.parseSimpleBlock(BlockResponse, line.Number, "RESPONSE_END")
			if err != nil {
				return nil, err
			}
			script.Blocks = append(script.Blocks, block)

		case "OUTPUT_SUCCESS":
			p.pos++
			block, err := p.parseSimpleBlock(BlockOutputSuccess, line.Number, "OUTPUT_END")
			if err != nil {
				return nil, err
			}
			script.Blocks = append(script.Blocks, block)

		case "OUTPUT_ERROR":
			p.pos++
			block, err := p.parseSimpleBlock(BlockOutputError, line.Number, "OUTPUT_END")
			if err != nil {
				return nil, err
			}
			script.Blocks = append(script.Blocks, block)

		case "CODE_START":
			p.pos++
			block, err := p.parseCodeBlock(line.Number)
			if err != nil {
				return nil, err
			}
			script.Blocks = append(script.Blocks, block)

		case "HTTP_START":
			p.pos++
			block, err := p.parseHTTPBlock(line.Number, toks)
			if err != nil {
				return nil, err
			}
			script.Blocks = append(script.Blocks, block)

		case "CONNECTION_CLOSE":
			p.pos++
			script.Blocks = append(script.Blocks, Block{Kind: BlockConnectionClose, Line: line.Number})

		default:
			return nil, errs.Syntax(line.Number, "unexpected token %q outside any block", toks[0].Text)
		}
	}

	return script, nil
}

// parseSimpleBlock consumes lines as Commands until endMarker.
func (p *blockParser) parseSimpleBlock(kind BlockKind, openLine int, endMarker string) (Block, error) {
	block := Block{Kind: kind, Line: openLine}

	for {
		line, ok := p.cur()
		if !ok {
			return Block{}, errs.Syntax(openLine, "missing %s for block opened here", endMarker)
		}
		toks, err := splitTokens(line.Number, line.Text)
		if err != nil {
			return Block{}, err
		}
		if len(toks) == 0 {
			p.pos++
			continue
		}
		op := strings.ToUpper(toks[0].Text)
		p.pos++
		if op == endMarker {
			return block, nil
		}

		cmd, err := dispatchCommand(line.Number, op, toks[1:])
		if err != nil {
			return Block{}, err
		}
		block.Commands = append(block.Commands, cmd)
	}
}

// dispatchCommand routes one non-marker line to its command-family parser.
func dispatchCommand(lineNo int, op string, args []token) (Command, error) {
	switch {
	case strings.HasPrefix(op, "WRITE_"):
		return parseWriteCommand(lineNo, op, args)
	case op == "SKIP_BYTES" || (strings.HasPrefix(op, "READ_") && op != "READ_BODY" && op != "READ_BODY_JSON"):
		return parseReadCommand(lineNo, op, args)
	case strings.HasPrefix(op, "EXPECT_"):
		return parseValidatorCommand(lineNo, op, args)
	case op == "PARAM" || op == "HEADER" || op == "DATA" || op == "READ_BODY" || op == "READ_BODY_JSON":
		return parseHTTPAuxCommand(lineNo, op, args)
	case op == "JSON_OUTPUT" || op == "RETURN":
		return parseOutputCommand(lineNo, op, args)
	default:
		return Command{}, errs.Syntax(lineNo, "unknown command %q", op)
	}
}

// parseHTTPBlock parses `HTTP_START REQUEST <METHOD> <PATH>` through
// `HTTP_END`, including a nested BODY_START/BODY_END region.
func (p *blockParser) parseHTTPBlock(openLine int, openToks []token) (Block, error) {
	if len(openToks) != 4 || strings.ToUpper(openToks[1].Text) != "REQUEST" {
		return Block{}, errs.Syntax(openLine, "HTTP_START expects 'REQUEST <METHOD> <PATH>'")
	}
	block := Block{Kind: BlockHTTPRequest, Line: openLine, Method: strings.ToUpper(openToks[2].Text), Path: openToks[3].Text}

	for {
		line, ok := p.cur()
		if !ok {
			return Block{}, errs.Syntax(openLine, "missing HTTP_END for block opened here")
		}
		toks, err := splitTokens(line.Number, line.Text)
		if err != nil {
			return Block{}, err
		}
		if len(toks) == 0 {
			p.pos++
			continue
		}
		op := strings.ToUpper(toks[0].Text)

		if op == "HTTP_END" {
			p.pos++
			return block, nil
		}
		if op == "BODY_START" {
			p.pos++
			body, err := p.parseBodyBlock(line.Number, toks)
			if err != nil {
				return Block{}, err
			}
			block.Body = body
			continue
		}

		p.pos++
		cmd, err := dispatchCommand(line.Number, op, toks[1:])
		if err != nil {
			return Block{}, err
		}
		block.Commands = append(block.Commands, cmd)
	}
}

func (p *blockParser) parseBodyBlock(openLine int, openToks []token) (*HTTPBody, error) {
	if len(openToks) != 3 || strings.ToUpper(openToks[1].Text) != "TYPE" {
		return nil, errs.Syntax(openLine, "BODY_START expects 'TYPE <FORM|RAW>'")
	}
	bodyType := strings.ToUpper(openToks[2].Text)
	if bodyType != "FORM" && bodyType != "RAW" {
		return nil, errs.Syntax(openLine, "BODY_START TYPE must be FORM or RAW, got %q", bodyType)
	}
	body := &HTTPBody{Type: bodyType}

	for {
		line, ok := p.cur()
		if !ok {
			return nil, errs.Syntax(openLine, "missing BODY_END for block opened here")
		}
		toks, err := splitTokens(line.Number, line.Text)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			p.pos++
			continue
		}
		op := strings.ToUpper(toks[0].Text)
		p.pos++
		if op == "BODY_END" {
			return body, nil
		}
		cmd, err := dispatchCommand(line.Number, op, toks[1:])
		if err != nil {
			return nil, err
		}
		body.Commands = append(body.Commands, cmd)
	}
}
