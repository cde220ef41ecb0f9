package tales

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// exprEnv is what expr: AST nodes evaluate against.
type exprEnv struct {
	functions FunctionRegistry
	accessors *Accessors
	variable  func(name string) (any, error)
}

// ExpressionNode represents a node in an expr: AST
type ExpressionNode interface {
	String() string
	evaluate(env *exprEnv) (any, error)
}

// LiteralNode represents a literal value (string, number, boolean)
type LiteralNode struct {
	Value any
}

func (n *LiteralNode) String() string {
	if str, ok := n.Value.(string); ok {
		return fmt.Sprintf("Literal(%q)", str)
	}
	return fmt.Sprintf("Literal(%v)", n.Value)
}

func (n *LiteralNode) evaluate(env *exprEnv) (any, error) {
	return n.Value, nil
}

// VariableNode represents a variable reference
type VariableNode struct {
	Name string
}

func (n *VariableNode) String() string {
	return fmt.Sprintf("Variable(%s)", n.Name)
}

func (n *VariableNode) evaluate(env *exprEnv) (any, error) {
	return env.variable(n.Name)
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Left     ExpressionNode
	Operator string
	Right    ExpressionNode
}

func (n *BinaryOpNode) String() string {
	return fmt.Sprintf("BinaryOp(%s %s %s)", n.Left.String(), n.Operator, n.Right.String())
}

func (n *BinaryOpNode) evaluate(env *exprEnv) (any, error) {
	leftVal, err := n.Left.evaluate(env)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit and return the deciding operand.
	switch n.Operator {
	case "&&":
		if !IsTruthy(leftVal) {
			return leftVal, nil
		}
		return n.Right.evaluate(env)
	case "||":
		if IsTruthy(leftVal) {
			return leftVal, nil
		}
		return n.Right.evaluate(env)
	}

	rightVal, err := n.Right.evaluate(env)
	if err != nil {
		return nil, err
	}
	return EvaluateBinaryOperation(leftVal, n.Operator, rightVal)
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Operator string
	Operand  ExpressionNode
}

func (n *UnaryOpNode) String() string {
	return fmt.Sprintf("UnaryOp(%s %s)", n.Operator, n.Operand.String())
}

func (n *UnaryOpNode) evaluate(env *exprEnv) (any, error) {
	operandVal, err := n.Operand.evaluate(env)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "!":
		return !IsTruthy(operandVal), nil
	case "-":
		return evaluateUnaryMinus(operandVal)
	case "+":
		return evaluateUnaryPlus(operandVal)
	default:
		return nil, fmt.Errorf("unknown unary operator: %s", n.Operator)
	}
}

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name string
	Args []ExpressionNode
}

func (n *FunctionCallNode) String() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("FunctionCall(%s, [%s])", n.Name, strings.Join(args, ", "))
}

func (n *FunctionCallNode) evaluate(env *exprEnv) (any, error) {
	fn, exists := env.functions.GetFunction(n.Name)
	if !exists {
		return nil, fmt.Errorf("unknown function: %s", n.Name)
	}

	args := make([]any, len(n.Args))
	for i, arg := range n.Args {
		val, err := arg.evaluate(env)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate argument %d for function %s: %w", i, n.Name, err)
		}
		args[i] = val
	}

	return fn.Call(args...)
}

// FieldAccessNode represents field access (obj.field)
type FieldAccessNode struct {
	Object ExpressionNode
	Field  string
}

func (n *FieldAccessNode) String() string {
	return fmt.Sprintf("FieldAccess(%s.%s)", n.Object.String(), n.Field)
}

func (n *FieldAccessNode) evaluate(env *exprEnv) (any, error) {
	obj, err := n.Object.evaluate(env)
	if err != nil {
		return nil, err
	}
	v, _ := env.accessors.Get(obj, n.Field)
	return callIfFunc(v)
}

// IndexAccessNode represents index access (obj[index])
type IndexAccessNode struct {
	Object ExpressionNode
	Index  ExpressionNode
}

func (n *IndexAccessNode) String() string {
	return fmt.Sprintf("IndexAccess(%s[%s])", n.Object.String(), n.Index.String())
}

func (n *IndexAccessNode) evaluate(env *exprEnv) (any, error) {
	obj, err := n.Object.evaluate(env)
	if err != nil {
		return nil, err
	}

	indexVal, err := n.Index.evaluate(env)
	if err != nil {
		return nil, err
	}

	switch idx := indexVal.(type) {
	case int:
		v, _ := indexOf(obj, idx)
		return v, nil
	case float64:
		v, _ := indexOf(obj, int(idx))
		return v, nil
	case string:
		v, _ := env.accessors.Get(obj, idx)
		return callIfFunc(v)
	default:
		return nil, fmt.Errorf("invalid index type: %T", indexVal)
	}
}

// ExpressionToken represents a token in an expression
type ExpressionToken struct {
	Type  ExpressionTokenType
	Value string
	Pos   int
}

type ExpressionTokenType int

const (
	ExprTokenIdentifier ExpressionTokenType = iota
	ExprTokenNumber
	ExprTokenString
	ExprTokenOperator
	ExprTokenLeftParen
	ExprTokenRightParen
	ExprTokenComma
	ExprTokenEOF
)

var (
	identifierRegex  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
	numberRegex      = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?`)
	stringRegex      = regexp.MustCompile(`^"([^"\\]|\\.)*"`)
	singleQuoteRegex = regexp.MustCompile(`^'([^'\\]|\\.)*'`)
	operatorRegex    = regexp.MustCompile(`^(==|!=|<=|>=|&&|\|\||\+|\-|\*|\/|\%|\!|<|>|\.|\[|\])`)
)

// TokenizeExpression tokenizes an expr: expression string
func TokenizeExpression(expr string) ([]ExpressionToken, error) {
	var tokens []ExpressionToken
	pos := 0

	for pos < len(expr) {
		switch expr[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
			continue
		case '(':
			tokens = append(tokens, ExpressionToken{Type: ExprTokenLeftParen, Value: "(", Pos: pos})
			pos++
			continue
		case ')':
			tokens = append(tokens, ExpressionToken{Type: ExprTokenRightParen, Value: ")", Pos: pos})
			pos++
			continue
		case ',':
			tokens = append(tokens, ExpressionToken{Type: ExprTokenComma, Value: ",", Pos: pos})
			pos++
			continue
		}

		remaining := expr[pos:]

		if match := identifierRegex.FindString(remaining); match != "" {
			tokens = append(tokens, ExpressionToken{Type: ExprTokenIdentifier, Value: match, Pos: pos})
			pos += len(match)
			continue
		}

		if match := numberRegex.FindString(remaining); match != "" {
			tokens = append(tokens, ExpressionToken{Type: ExprTokenNumber, Value: match, Pos: pos})
			pos += len(match)
			continue
		}

		if match := stringRegex.FindString(remaining); match != "" {
			value := match[1 : len(match)-1]
			value = strings.ReplaceAll(value, `\"`, `"`)
			value = strings.ReplaceAll(value, `\\`, `\`)
			tokens = append(tokens, ExpressionToken{Type: ExprTokenString, Value: value, Pos: pos})
			pos += len(match)
			continue
		}

		if match := singleQuoteRegex.FindString(remaining); match != "" {
			value := match[1 : len(match)-1]
			value = strings.ReplaceAll(value, `\'`, `'`)
			value = strings.ReplaceAll(value, `\\`, `\`)
			tokens = append(tokens, ExpressionToken{Type: ExprTokenString, Value: value, Pos: pos})
			pos += len(match)
			continue
		}

		if match := operatorRegex.FindString(remaining); match != "" {
			tokens = append(tokens, ExpressionToken{Type: ExprTokenOperator, Value: match, Pos: pos})
			pos += len(match)
			continue
		}

		return nil, NewSyntaxError("unexpected character", string(expr[pos]), pos)
	}

	tokens = append(tokens, ExpressionToken{Type: ExprTokenEOF, Pos: pos})
	return tokens, nil
}

// ParseExpression parses an expr: expression into an AST. Trailing tokens
// are rejected.
func ParseExpression(expr string) (ExpressionNode, error) {
	tokens, err := TokenizeExpression(expr)
	if err != nil {
		return nil, err
	}

	parser := &ExpressionParser{tokens: tokens}
	node, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}

	if token := parser.current(); token.Type != ExprTokenEOF {
		return nil, NewSyntaxError("unexpected trailing token", token.Value, token.Pos)
	}
	return node, nil
}

// ExpressionParser parses expressions into AST nodes
type ExpressionParser struct {
	tokens []ExpressionToken
	pos    int
}

func (p *ExpressionParser) current() ExpressionToken {
	if p.pos >= len(p.tokens) {
		return ExpressionToken{Type: ExprTokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *ExpressionParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *ExpressionParser) atOperator(ops ...string) bool {
	tok := p.current()
	if tok.Type != ExprTokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.Value == op {
			return true
		}
	}
	return false
}

func (p *ExpressionParser) parseExpression() (ExpressionNode, error) {
	return p.parseBinary(0)
}

// precedence levels, lowest first
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *ExpressionParser) parseBinary(level int) (ExpressionNode, error) {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}

	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}

	for p.atOperator(binaryLevels[level]...) {
		op := p.current().Value
		p.advance()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *ExpressionParser) parseUnary() (ExpressionNode, error) {
	if p.atOperator("!", "-", "+") {
		op := p.current().Value
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Operator: op, Operand: operand}, nil
	}
	return p.parseFieldAccess()
}

// parseFieldAccess parses field access expressions (obj.field, obj[key])
func (p *ExpressionParser) parseFieldAccess() (ExpressionNode, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.atOperator("."):
			p.advance()
			tok := p.current()
			if tok.Type != ExprTokenIdentifier && tok.Type != ExprTokenNumber {
				return nil, NewSyntaxError("expected member name after '.'", tok.Value, tok.Pos)
			}
			p.advance()
			left = &FieldAccessNode{Object: left, Field: tok.Value}
		case p.atOperator("["):
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if !p.atOperator("]") {
				tok := p.current()
				return nil, NewSyntaxError("expected ']' after index", tok.Value, tok.Pos)
			}
			p.advance()
			left = &IndexAccessNode{Object: left, Index: index}
		default:
			return left, nil
		}
	}
}

func (p *ExpressionParser) parsePrimary() (ExpressionNode, error) {
	token := p.current()

	switch token.Type {
	case ExprTokenNumber:
		p.advance()
		if intVal, err := strconv.Atoi(token.Value); err == nil {
			return &LiteralNode{Value: intVal}, nil
		}
		if floatVal, err := strconv.ParseFloat(token.Value, 64); err == nil {
			return &LiteralNode{Value: floatVal}, nil
		}
		return nil, NewSyntaxError("invalid number", token.Value, token.Pos)

	case ExprTokenString:
		p.advance()
		return &LiteralNode{Value: token.Value}, nil

	case ExprTokenIdentifier:
		p.advance()
		switch token.Value {
		case "true":
			return &LiteralNode{Value: true}, nil
		case "false":
			return &LiteralNode{Value: false}, nil
		case "null", "nil":
			return &LiteralNode{Value: nil}, nil
		}
		if p.current().Type == ExprTokenLeftParen {
			return p.parseFunctionCall(token.Value)
		}
		return &VariableNode{Name: token.Value}, nil

	case ExprTokenLeftParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current().Type != ExprTokenRightParen {
			tok := p.current()
			return nil, NewSyntaxError("expected ')' after expression", tok.Value, tok.Pos)
		}
		p.advance()
		return expr, nil

	default:
		return nil, NewSyntaxError("unexpected token", token.Value, token.Pos)
	}
}

func (p *ExpressionParser) parseFunctionCall(name string) (ExpressionNode, error) {
	p.advance() // consume '('

	var args []ExpressionNode
	if p.current().Type == ExprTokenRightParen {
		p.advance()
		return &FunctionCallNode{Name: name, Args: args}, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		switch p.current().Type {
		case ExprTokenComma:
			p.advance()
			continue
		case ExprTokenRightParen:
			p.advance()
			return &FunctionCallNode{Name: name, Args: args}, nil
		}
		tok := p.current()
		return nil, NewSyntaxError("expected ',' or ')' in function arguments", tok.Value, tok.Pos)
	}
}

// EvaluateBinaryOperation evaluates a non-logical binary operation
func EvaluateBinaryOperation(left any, operator string, right any) (any, error) {
	switch operator {
	case "+":
		return evaluateAddition(left, right)
	case "-":
		return evaluateArithmetic(left, right, "subtract", func(a, b float64) float64 { return a - b })
	case "*":
		return evaluateArithmetic(left, right, "multiply", func(a, b float64) float64 { return a * b })
	case "/":
		return evaluateDivision(left, right)
	case "%":
		return evaluateModulo(left, right)
	case "==":
		return evaluateEquals(left, right), nil
	case "!=":
		return !evaluateEquals(left, right), nil
	case "<", ">", "<=", ">=":
		return evaluateComparison(left, operator, right)
	default:
		return nil, fmt.Errorf("unknown binary operator: %s", operator)
	}
}

func evaluateAddition(left, right any) (any, error) {
	if leftStr, ok := left.(string); ok {
		return leftStr + FormatValue(right), nil
	}
	if rightStr, ok := right.(string); ok {
		return FormatValue(left) + rightStr, nil
	}
	return evaluateArithmetic(left, right, "add", func(a, b float64) float64 { return a + b })
}

func evaluateArithmetic(left, right any, verb string, op func(a, b float64) float64) (any, error) {
	leftNum, leftOk := toFloat64(left)
	rightNum, rightOk := toFloat64(right)

	if !leftOk || !rightOk {
		return nil, fmt.Errorf("cannot %s %T and %T", verb, left, right)
	}

	result := op(leftNum, rightNum)
	if isInteger(left) && isInteger(right) {
		return int(result), nil
	}
	return result, nil
}

func evaluateDivision(left, right any) (any, error) {
	leftNum, leftOk := toFloat64(left)
	rightNum, rightOk := toFloat64(right)

	if !leftOk || !rightOk {
		return nil, fmt.Errorf("cannot divide %T and %T", left, right)
	}
	if rightNum == 0 {
		return nil, fmt.Errorf("division by zero")
	}

	result := leftNum / rightNum
	if isInteger(left) && isInteger(right) && result == float64(int(result)) {
		return int(result), nil
	}
	return result, nil
}

func evaluateModulo(left, right any) (any, error) {
	leftInt, leftOk := toInt(left)
	rightInt, rightOk := toInt(right)

	if !leftOk || !rightOk {
		return nil, fmt.Errorf("modulo operation requires integers, got %T and %T", left, right)
	}
	if rightInt == 0 {
		return nil, fmt.Errorf("modulo by zero")
	}
	return leftInt % rightInt, nil
}

func evaluateEquals(left, right any) bool {
	if left == nil && right == nil {
		return true
	}
	if left == nil || right == nil {
		return false
	}

	if leftNum, leftOk := toFloat64(left); leftOk {
		if rightNum, rightOk := toFloat64(right); rightOk {
			return leftNum == rightNum
		}
	}

	defer func() { _ = recover() }() // uncomparable dynamic types
	return left == right
}

func evaluateComparison(left any, operator string, right any) (any, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			c := strings.Compare(ls, rs)
			switch operator {
			case "<":
				return c < 0, nil
			case ">":
				return c > 0, nil
			case "<=":
				return c <= 0, nil
			default:
				return c >= 0, nil
			}
		}
	}

	leftNum, leftOk := toFloat64(left)
	rightNum, rightOk := toFloat64(right)
	if !leftOk || !rightOk {
		return nil, fmt.Errorf("cannot compare %T and %T", left, right)
	}

	switch operator {
	case "<":
		return leftNum < rightNum, nil
	case ">":
		return leftNum > rightNum, nil
	case "<=":
		return leftNum <= rightNum, nil
	default:
		return leftNum >= rightNum, nil
	}
}

func evaluateUnaryMinus(operand any) (any, error) {
	num, ok := toFloat64(operand)
	if !ok {
		return nil, fmt.Errorf("cannot apply unary minus to %T", operand)
	}
	if isInteger(operand) {
		return -int(num), nil
	}
	return -num, nil
}

func evaluateUnaryPlus(operand any) (any, error) {
	num, ok := toFloat64(operand)
	if !ok {
		return nil, fmt.Errorf("cannot apply unary plus to %T", operand)
	}
	if isInteger(operand) {
		return int(num), nil
	}
	return num, nil
}
