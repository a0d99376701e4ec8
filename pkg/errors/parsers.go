// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"regexp"
	"strconv"
	"strings"
)

var submittedJobPattern = regexp.MustCompile(`Submitted batch job (\d+)`)

// ParseSubmittedJobID extracts the job ID sbatch prints on a successful
// submission, e.g. "Submitted batch job 1234567".
func ParseSubmittedJobID(output string) (uint32, bool) {
	match := submittedJobPattern.FindStringSubmatch(output)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(match[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// ClassifyStderr inspects the stderr text of a failed sbatch/sacct/scancel
// invocation and maps it to an ErrorCode. Patterns are drawn from the
// messages slurmctld/slurmdbd actually emit for transient connectivity
// trouble versus outright submission rejections.
func ClassifyStderr(stderr string) ErrorCode {
	text := strings.ToLower(stderr)

	switch {
	case strings.Contains(text, "socket timed out"):
		return ErrorCodeSocketTimeout
	case strings.Contains(text, "unable to contact slurm controller"),
		strings.Contains(text, "zero bytes read on socket"),
		strings.Contains(text, "connection refused"),
		strings.Contains(text, "slurmdbd"):
		return ErrorCodeControllerUnreachable
	case strings.Contains(text, "invalid partition"),
		strings.Contains(text, "invalid account"),
		strings.Contains(text, "invalid qos"),
		strings.Contains(text, "access/permission denied"),
		strings.Contains(text, "invalid job id"):
		return ErrorCodeRejected
	case text == "":
		return ErrorCodeMalformedOutput
	default:
		return ErrorCodeUnknown
	}
}
