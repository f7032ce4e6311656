package core

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
)

// Compare decides whether the program's output matches the reference answer
// under the given problem type. It returns an error only when a file cannot
// be opened or read, which the caller surfaces as System Error.
func Compare(problemType ProblemType, outputPath, answerPath string) (bool, error) {
	switch problemType {
	case ProblemStandard:
		return compareStandard(outputPath, answerPath)
	default:
		return compareStrict(outputPath, answerPath)
	}
}

// compareStandard compares line-by-line after trimming trailing whitespace
// from each line and dropping empty lines; line order must still match.
func compareStandard(outputPath, answerPath string) (bool, error) {
	a, err := significantLines(outputPath)
	if err != nil {
		return false, err
	}
	b, err := significantLines(answerPath)
	if err != nil {
		return false, err
	}
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		if a[i] != b[i] {
			return false, nil
		}
	}
	return true, nil
}

func significantLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r\n")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// compareStrict compares both files byte-for-byte.
func compareStrict(outputPath, answerPath string) (bool, error) {
	a, err := os.Open(outputPath)
	if err != nil {
		return false, err
	}
	defer a.Close()
	b, err := os.Open(answerPath)
	if err != nil {
		return false, err
	}
	defer b.Close()

	bufA := bufio.NewReader(a)
	bufB := bufio.NewReader(b)
	const chunk = 64 * 1024
	pa := make([]byte, chunk)
	pb := make([]byte, chunk)
	for {
		na, errA := io.ReadFull(bufA, pa)
		nb, errB := io.ReadFull(bufB, pb)
		if na != nb || !bytes.Equal(pa[:na], pb[:nb]) {
			return false, nil
		}
		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if doneA != doneB {
			return false, nil
		}
		if doneA {
			return true, nil
		}
		if errA != nil {
			return false, errA
		}
		if errB != nil {
			return false, errB
		}
	}
}
