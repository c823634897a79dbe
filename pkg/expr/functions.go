package expr

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// baseFunctions is the fixed, pure function table available to expressions.
// There is deliberately no way to register additional functions at runtime.
var baseFunctions = map[string]function.Function{
	"len":      stdlib.LengthFunc,
	"min":      stdlib.MinFunc,
	"max":      stdlib.MaxFunc,
	"abs":      stdlib.AbsoluteFunc,
	"floor":    stdlib.FloorFunc,
	"ceil":     stdlib.CeilFunc,
	"upper":    stdlib.UpperFunc,
	"lower":    stdlib.LowerFunc,
	"trim":     stdlib.TrimSpaceFunc,
	"coalesce": stdlib.CoalesceFunc,
	"contains": containsFunc,
	"has":      hasFunc,
}

// containsFunc reports whether a collection of strings contains a value.
var containsFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "collection", Type: cty.DynamicPseudoType, AllowDynamicType: true},
		{Name: "value", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		coll, want := args[0], args[1]
		for it := coll.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if ev.Type() == cty.String && !ev.IsNull() && ev.AsString() == want.AsString() {
				return cty.True, nil
			}
		}
		return cty.False, nil
	},
})

// hasFunc reports whether an object carries the named attribute. Useful for
// guarding conditions against keys that appear mid-run.
var hasFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "object", Type: cty.DynamicPseudoType, AllowDynamicType: true},
		{Name: "key", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		obj, key := args[0], args[1]
		if !obj.Type().IsObjectType() {
			return cty.False, nil
		}
		return cty.BoolVal(obj.Type().HasAttribute(key.AsString())), nil
	},
})
