package parser

// Parser performs the two-pass assembly described in SPEC_FULL.md §4.2/§4.3:
// the first pass tokenizes instructions into IR nodes while recording label
// offsets, dynamic symbols, and relocation sites; the second pass rewrites
// label operands into resolved immediates.
type Parser struct {
	tokens []Token
	pos    int
	cur    Token
	peek   Token

	filename string
	errors   *ErrorList

	labels      *LabelMap
	dynsyms     *DynamicSymbolTable
	relocations *RelocationTable

	accumOffset  int64
	progIsStatic bool
	rodataPhase  bool
	rodataSize   int64

	entryLabel string
}

// NewParser tokenizes input via a fresh Lexer and prepares a Parser over the
// resulting token stream.
func NewParser(input, filename string) *Parser {
	lex := NewLexer(input, filename)
	tokens := lex.TokenizeAll()

	p := &Parser{
		tokens:       tokens,
		filename:     filename,
		errors:       &ErrorList{},
		labels:       NewLabelMap(),
		dynsyms:      NewDynamicSymbolTable(),
		relocations:  &RelocationTable{},
		progIsStatic: true,
	}
	for _, e := range lex.Errors().Errors {
		p.errors.Add(e)
	}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	if p.pos < len(p.tokens) {
		p.peek = p.tokens[p.pos]
		p.pos++
	} else {
		p.peek = Token{Type: TokenEOF, Pos: p.cur.Pos}
	}
}

func (p *Parser) errf(pos Position, format string, args ...interface{}) {
	p.errors.Add(NewError(ParseError, pos, format, args...))
}

// Parse runs both passes and returns the assembled IR, or the accumulated
// ErrorList if either pass failed.
func (p *Parser) Parse() (*ParseResult, error) {
	if p.errors.HasErrors() {
		return nil, p.errors
	}

	var nodes []Node
	var rodataNodes []*RODataNode

	for p.cur.Type != TokenEOF {
		switch p.cur.Type {

		case TokenDirective:
			name := p.cur.Literal
			line := p.cur.Pos.Line
			p.advance()
			var args []string
			if p.cur.Type == TokenString || p.cur.Type == TokenLabel || p.cur.Type == TokenIdentifier {
				args = append(args, p.cur.Literal)
				p.advance()
			}
			nodes = append(nodes, &DirectiveNode{Name: name, Args: args, Line: line})

		case TokenRodata:
			p.rodataPhase = true
			p.advance()

		case TokenGlobal:
			line := p.cur.Pos.Line
			p.advance()
			var args []string
			if p.cur.Type == TokenLabel || p.cur.Type == TokenIdentifier {
				p.entryLabel = p.cur.Literal
				args = append(args, p.cur.Literal)
				p.advance()
			}
			nodes = append(nodes, &DirectiveNode{Name: "global", Args: args, Line: line})

		case TokenExtern:
			line := p.cur.Pos.Line
			p.advance()
			var args []string
			for p.cur.Type == TokenLabel || p.cur.Type == TokenIdentifier {
				args = append(args, p.cur.Literal)
				p.dynsyms.Intern(p.cur.Literal)
				p.advance()
			}
			nodes = append(nodes, &DirectiveNode{Name: "extern", Args: args, Line: line})

		case TokenLabel:
			name := p.cur.Literal
			line := p.cur.Pos.Line
			pos := p.cur.Pos
			p.advance()

			if p.labels.Defined(name) {
				p.errf(pos, "duplicate label %q", name)
			}

			if p.rodataPhase {
				var data []byte
				for p.cur.Type == TokenString || p.cur.Type == TokenDirective {
					if p.cur.Type == TokenString {
						data = append(data, []byte(p.cur.Literal)...)
					}
					p.advance()
				}
				rodataNodes = append(rodataNodes, &RODataNode{
					Name: name, Data: data, Offset: p.accumOffset, Line: line,
				})
				p.rodataSize += int64(len(data))
			} else {
				nodes = append(nodes, &LabelNode{Name: name, Line: line})
			}
			p.labels.Define(name, int(p.accumOffset))

		case TokenOpcode:
			inst := p.parseInstruction()
			if inst != nil {
				nodes = append(nodes, inst)
				if inst.Opcode == OpLddw {
					p.accumOffset += 16
				} else {
					p.accumOffset += 8
				}
			}

		default:
			p.errf(p.cur.Pos, "unexpected token %s", p.cur)
			p.advance()
		}
	}

	if p.errors.HasErrors() {
		return nil, p.errors
	}

	p.resolveLabels(nodes)
	if p.errors.HasErrors() {
		return nil, p.errors
	}

	entryOffset := int64(0)
	if p.entryLabel != "" {
		if off, ok := p.labels.Resolve(p.entryLabel); ok {
			entryOffset = int64(off)
			p.dynsyms.Intern(p.entryLabel)
		} else {
			p.errf(Position{Filename: p.filename}, "undefined entry label %q", p.entryLabel)
			return nil, p.errors
		}
	}

	return &ParseResult{
		Nodes:          nodes,
		RodataNodes:    rodataNodes,
		LabelMap:       p.labels,
		DynamicSymbols: p.dynsyms,
		Relocations:    p.relocations,
		ProgIsStatic:   p.progIsStatic,
		EntryLabel:     p.entryLabel,
		EntryOffset:    entryOffset,
		CodeSize:       p.accumOffset,
		RodataSize:     p.rodataSize,
	}, nil
}

// parseInstruction consumes one opcode mnemonic and its operands, promoting
// base opcodes to their concrete (imm|reg) form once the operand pattern is
// known, per SPEC_FULL.md §4.2 and the opcode table in opcode.go.
func (p *Parser) parseInstruction() *InstructionNode {
	mnemonic := p.cur.Literal
	line := p.cur.Pos.Line
	pos := p.cur.Pos
	base, _ := LookupOpcode(mnemonic)
	p.advance()

	var operands []Operand

	switch {
	case base == OpExit:
		// no operands

	case base == OpJa:
		operands = append(operands, p.consumeJumpTarget())

	case base == OpCall:
		if p.cur.Type == TokenIdentifier || p.cur.Type == TokenLabel {
			name := p.cur.Literal
			operands = append(operands, Operand{Kind: OperandLabel, Name: name})
			p.advance()
		} else {
			p.errf(pos, "call requires a target symbol")
		}
		p.progIsStatic = false
		if len(operands) > 0 {
			p.dynsyms.Intern(operands[0].Name)
			p.relocations.Add(Relocation{Offset: int(p.accumOffset), Symbol: operands[0].Name, Kind: SbfSyscall})
		}

	case base == OpLddw:
		operands = p.consumeRegAndImmOrLabel()
		if len(operands) == 2 && operands[1].Kind == OperandLabel {
			p.relocations.Add(Relocation{Offset: int(p.accumOffset), Symbol: operands[1].Name, Kind: Sbf64Relative})
			p.progIsStatic = false
		}

	case base == OpLdxb:
		operands = p.consumeRegAndExpression()

	case base.IsArithmeticFamily():
		regImm := p.consumeUpToN(2)
		base = p.promoteByPattern(base, regImm, pos)
		operands = regImm

	case base.IsConditionalJumpFamily():
		regImm := p.consumeUpToN(2)
		target := p.consumeJumpTarget()
		resolved := p.promoteByPattern(base, regImm, pos)
		base = resolved
		operands = append(regImm, target)

	default:
		p.errf(pos, "unknown opcode %q", mnemonic)
		return nil
	}

	return &InstructionNode{Opcode: base, Operands: operands, Offset: p.accumOffset, Line: line}
}

// consumeUpToN reads up to n Register/Immediate operands separated by
// commas, per the Rust parser's generic "get next n tokens" loop.
func (p *Parser) consumeUpToN(n int) []Operand {
	var ops []Operand
	for i := 0; i < n; i++ {
		switch p.cur.Type {
		case TokenRegister:
			ops = append(ops, Operand{Kind: OperandRegister, Reg: int(p.cur.Value)})
			p.advance()
		case TokenImmediate:
			ops = append(ops, Operand{Kind: OperandImmediate, Value: p.cur.Value, Kind2: p.cur.Kind})
			p.advance()
		case TokenComma:
			p.advance()
			i--
		default:
			return ops
		}
	}
	return ops
}

// consumeJumpTarget reads the trailing label/immediate operand jump
// mnemonics take after their register/immediate comparands.
func (p *Parser) consumeJumpTarget() Operand {
	if p.cur.Type == TokenComma {
		p.advance()
	}
	switch p.cur.Type {
	case TokenIdentifier, TokenLabel:
		name := p.cur.Literal
		p.advance()
		return Operand{Kind: OperandLabel, Name: name}
	case TokenImmediate:
		v := p.cur.Value
		p.advance()
		return Operand{Kind: OperandImmediate, Value: v}
	default:
		return Operand{}
	}
}

// consumeRegAndImmOrLabel parses lddw's "rX, <imm>" or "rX, <label>" form.
func (p *Parser) consumeRegAndImmOrLabel() []Operand {
	var ops []Operand
	if p.cur.Type == TokenRegister {
		ops = append(ops, Operand{Kind: OperandRegister, Reg: int(p.cur.Value)})
		p.advance()
	}
	if p.cur.Type == TokenComma {
		p.advance()
	}
	switch p.cur.Type {
	case TokenImmediate:
		ops = append(ops, Operand{Kind: OperandImmediate, Value: p.cur.Value, Kind2: p.cur.Kind})
		p.advance()
	case TokenIdentifier, TokenLabel:
		name := p.cur.Literal
		ops = append(ops, Operand{Kind: OperandLabel, Name: name})
		p.advance()
	}
	return ops
}

// consumeRegAndExpression parses ldxb's "rX, [rY+N]" form.
func (p *Parser) consumeRegAndExpression() []Operand {
	var ops []Operand
	if p.cur.Type == TokenRegister {
		ops = append(ops, Operand{Kind: OperandRegister, Reg: int(p.cur.Value)})
		p.advance()
	}
	if p.cur.Type == TokenComma {
		p.advance()
	}
	if p.cur.Type == TokenLeftBracket {
		p.advance()
	}
	if p.cur.Type == TokenExpression {
		base, offset := parseExpression(p.cur.Literal)
		ops = append(ops, Operand{Kind: OperandExpression, BaseReg: base, Offset: offset})
		p.advance()
	}
	if p.cur.Type == TokenRightBracket {
		p.advance()
	}
	return ops
}

// promoteByPattern resolves a base opcode to its Imm/Reg form based on the
// operand kinds actually parsed, per the opcodeForms table in opcode.go.
func (p *Parser) promoteByPattern(base Opcode, ops []Operand, pos Position) Opcode {
	if len(ops) != 2 {
		p.errf(pos, "%s requires two operands", base)
		return base
	}
	if ops[0].Kind != OperandRegister {
		p.errf(pos, "%s requires a register as its first operand", base)
		return base
	}
	switch ops[1].Kind {
	case OperandImmediate:
		if op, ok := base.PromoteImm(); ok {
			return op
		}
	case OperandRegister:
		if op, ok := base.PromoteReg(); ok {
			return op
		}
	}
	p.errf(pos, "%s has an invalid second operand", base)
	return base
}

// resolveLabels is the second pass: rewrite label operands into resolved
// immediates using the PC-relative jump formula and the lddw absolute-
// address formula from SPEC_FULL.md §4.3. Unlike the Rust reference this
// implementation raises a fatal ParseError on an unresolved label instead
// of silently leaving the operand untouched.
func (p *Parser) resolveLabels(nodes []Node) {
	for _, n := range nodes {
		inst, ok := n.(*InstructionNode)
		if !ok || len(inst.Operands) == 0 {
			continue
		}
		last := len(inst.Operands) - 1
		op := inst.Operands[last]
		if op.Kind != OperandLabel {
			continue
		}

		if inst.Opcode == OpCall {
			continue // resolved via dynamic symbol table, not a byte offset
		}

		targetOffset, ok := p.labels.Resolve(op.Name)
		if !ok {
			p.errf(Position{Filename: p.filename, Line: inst.Line}, "undefined label %q", op.Name)
			continue
		}

		if inst.Opcode == OpLddw {
			phCount := int64(1)
			if !p.progIsStatic {
				phCount = 3
			}
			abs := int64(targetOffset) + 64 + phCount*56
			inst.Operands[last] = Operand{Kind: OperandImmediate, Value: abs, Kind2: ImmAddr}
			continue
		}

		rel := (int64(targetOffset)-inst.Offset)/8 - 1
		inst.Operands[last] = Operand{Kind: OperandImmediate, Value: rel, Kind2: ImmInt}
	}
}

// parseExpression splits a "rX+N" (or "rX-N") memory operand body into its
// base register and signed byte offset.
func parseExpression(raw string) (baseReg int, offset int64) {
	sign := int64(1)
	splitAt := -1
	for i := 1; i < len(raw); i++ {
		if raw[i] == '+' {
			splitAt = i
			break
		}
		if raw[i] == '-' {
			splitAt = i
			sign = -1
			break
		}
	}
	if splitAt < 0 {
		reg, _ := isRegisterName(raw)
		return reg, 0
	}
	reg, _ := isRegisterName(raw[:splitAt])
	n := parseUint(raw[splitAt+1:])
	return reg, sign * n
}

func parseUint(s string) int64 {
	var v int64
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		v = v*10 + int64(s[i]-'0')
	}
	return v
}
