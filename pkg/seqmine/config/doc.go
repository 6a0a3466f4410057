/*
Package config provides the typed, validated parameter set of a mining run.

# Overview

Params carries every knob of the pipeline: segmentation (gap threshold,
minimum cluster size), mining (support, confidence, item cap), grouping
(time window, tie-break) and completion (minimum repetitions, split mode).
The core components take every value explicitly; Default only serves
callers that want a starting point.

# Loading

Load layers three sources, later ones winning:

  - the defaults from Default
  - an optional YAML file
  - environment variables prefixed with SEQMINE_ (SEQMINE_MIN_SUPPORT=0.05)

	p, err := config.Load("mining.yaml")
	if err != nil {
	    log.Fatal(err)
	}

FromYAML and FromFile decode a single document over the defaults:

	p, err := config.FromYAML([]byte("gap_threshold: 2m\nmin_support: 0.02\n"))

Durations are written as Go duration strings ("90s", "5m").

# Validation

Every loader validates before returning. Violations are reported as
*errors.ConfigurationError values joined with errors.Join, one per field:

	if err := p.Validate(); err != nil {
	    fmt.Println(err) // invalid min_support (1.5): must be at most 1
	}

# Conversion

Mining, Grouping and Completion project Params onto the parameter types of
the mining, grouping and completion packages.
*/
package config
