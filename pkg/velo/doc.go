// Package velo implements a restricted Velocity-style template engine.
//
// A template is plain text interspersed with variable references and
// directives. Parsing happens once; the resulting Template is immutable
// and can be evaluated any number of times against different variable
// maps, including concurrently.
//
// # Quick Start
//
//	tmpl, err := velo.ParseString("Hello, $name!", "greeting")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Evaluate(map[string]any{"name": "World"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out) // Hello, World!
//
// # Template Syntax
//
// References:
//
//	$name               - variable reference
//	${name}text         - brace form, disambiguates trailing text
//	$user.address       - property access (map key, struct field, or
//	                      Address/GetAddress/IsAddress method)
//	$list[0]  $map["k"] - index access
//	$counter.next()     - method call, arguments allowed
//
// Directives:
//
//	#if ($cond) ... #elseif ($other) ... #else ... #end
//	#foreach ($item in $items) ... #end     ($foreach.hasNext inside)
//	#set ($x = 1 + 2 * 3)
//	#macro (name $a $b) ... #end  then  #name(arg1, arg2)
//	#parse ("other-template")
//	## comment to end of line
//
// Expressions support ||, &&, == and !=, < <= > >=, + - * / %, unary !
// and parentheses. Arithmetic is integer-only. Equality compares values
// of the same type naturally; values of different types compare equal
// when their rendered strings match, so 5 == "5".
//
// Macro arguments use call-by-name: an argument expression is evaluated
// in the caller's scope each time the macro body references the
// parameter, and not at all if the body never does.
//
// Parse failures are reported as *ParseError with a 1-based line number
// and a snippet of the upcoming input; evaluation failures as
// *EvaluationError, chained through *MacroError frames when they occur
// inside a macro body.
package velo
