package recorder

import "golang.org/x/sys/unix"

// freeDiskMB returns the free space, in megabytes, on the filesystem
// hosting path.
func freeDiskMB(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	bytesFree := uint64(st.Bavail) * uint64(st.Bsize)
	return int64(bytesFree / (1024 * 1024)), nil
}
