//go:build !v8

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// executePendingJobs runs all pending microtasks (Promise callbacks, etc.) in
// the QuickJS runtime. The modernc.org/quickjs Go wrapper never calls
// JS_ExecutePendingJob, so Promise .then() callbacks would otherwise never
// fire.
//
// Returns the number of jobs executed.
func executePendingJobs(vm *quickjs.VM) int {
	rt, tls, ok := extractRuntime(vm)
	if !ok {
		return 0
	}

	count := 0
	for {
		ret := lib.XJS_ExecutePendingJob(tls, rt, 0)
		if ret <= 0 {
			break
		}
		count++
	}
	return count
}

// memoryUsage mirrors the leading int64 fields of the C JSMemoryUsage struct.
// The array is sized past the end of the struct.
type memoryUsage [32]int64

const (
	muMallocSize       = 0
	muMallocLimit      = 1
	muMemoryUsedSize   = 2
	muBinaryObjectSize = 25
)

// computeMemoryUsage fills u from JS_ComputeMemoryUsage. It reports false
// when the runtime pointers could not be recovered from vm.
func computeMemoryUsage(vm *quickjs.VM, u *memoryUsage) bool {
	rt, tls, ok := extractRuntime(vm)
	if !ok {
		return false
	}
	lib.XJS_ComputeMemoryUsage(tls, rt, uintptr(unsafe.Pointer(u)))
	return true
}

// setMaxStackSize applies the native stack guard of the VM's runtime.
func setMaxStackSize(vm *quickjs.VM, bytes uint64) bool {
	rt, tls, ok := extractRuntime(vm)
	if !ok {
		return false
	}
	lib.XJS_SetMaxStackSize(tls, rt, lib.Tsize_t(bytes))
	return true
}

// extractContext pulls the unexported cContext value out of a *quickjs.VM.
func extractContext(vm *quickjs.VM) (uintptr, bool) {
	f := reflect.ValueOf(vm).Elem().FieldByName("cContext")
	if !f.IsValid() {
		return 0, false
	}
	return uintptr(f.Uint()), true
}

// extractRuntime uses unsafe reflection to pull the unexported tls and
// cRuntime values out of a *quickjs.VM.
//
// VM struct layout (modernc.org/quickjs@v0.17.1):
//
//	type VM struct {
//	    cContext       uintptr
//	    goFuncs       map[string]int32
//	    int32_16      lib.TJSValue
//	    int32_2       lib.TJSValue
//	    runtime       *runtime
//	    ...
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func extractRuntime(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, ok bool) {
	vmVal := reflect.ValueOf(vm).Elem()

	rtField := vmVal.FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return 0, nil, false
	}

	rtPtr := unsafe.Pointer(rtField.Pointer())
	rtVal := reflect.NewAt(rtField.Type().Elem(), rtPtr).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return 0, nil, false
	}
	cRuntime = uintptr(cRuntimeField.Uint())

	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, false
	}
	tls = (*libc.TLS)(unsafe.Pointer(tlsField.Pointer()))

	return cRuntime, tls, true
}
