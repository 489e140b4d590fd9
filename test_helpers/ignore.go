package test_helpers

import (
	"github.com/rupertlssmith/lojix-sub004/logic"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var (
	// TermOptions makes go-cmp work over logic terms, whose types cache
	// unexported derived data.
	TermOptions = cmp.Options{
		cmpopts.IgnoreUnexported(logic.Comp{}),
		cmpopts.IgnoreUnexported(logic.Clause{}),
		cmp.AllowUnexported(logic.Var{}),
	}
)
