package services

import (
	"bufio"
	"os"
	"strings"

	"task-manager/apperrors"
)

// LoadBlackList reads one forbidden password per line. Blank lines and lines
// starting with # are skipped.
func LoadBlackList(filePath string) (map[string]bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	blackList := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		blackList[line] = true
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return blackList, nil
}

func (s *UserService) checkBlackList(password string) error {
	if s.BlackList[password] {
		return apperrors.Validation(map[string]string{"password": "password is too common"})
	}
	return nil
}
