package config

// builtinConfigSchema constrains migration config files. Parsed CUE is
// unified with this schema before decoding, so type errors surface with
// CUE's own positions instead of Go decode failures.
const builtinConfigSchema = `
#Duration: string & =~"^[0-9]+(ns|us|µs|ms|s|m|h)$"

#Config: {
	vendor: {
		name:       string & !=""
		base_url?:  string
		token_env?: string
		workspace?: string
		timeout?:   #Duration
	}
	target?: {
		base_url?:  string
		token_env?: string
		timeout?:   #Duration
	}
	store?: {
		path?: string
	}
	selection?: {
		include?: [...string]
		exclude?: [...string]
		labels?: {[string]: string}
	}
	tuning?: {
		max_parallel?: int & >=0 & <=64
		max_retries?:  int & >=0 & <=10
		unit_timeout?: #Duration
	}
	overrides?: [...{
		match:   string & !=""
		skip?:   bool
		rename?: string
		kind?:   "task" | "approval" | "form"
		roles?: [...string]
		hook?: string
	}]
	hooks?: {
		file?:    string
		timeout?: #Duration
	}
	policy?: {
		paths?: [...string]
		watch?: bool
		disabled?: [...string]
	}
	review_threshold?: float & >=0 & <=1
}
`
