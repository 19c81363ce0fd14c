package banner

import (
	"fmt"
	"io"
)

const Version = "1.0.0"

func Print(w io.Writer) {
	banner := `
   _____                              _       __      __       __
  / ___/___  ____  _________  _____  | |     / /___ _/ /______/ /_
  \__ \/ _ \/ __ \/ ___/ __ \/ ___/  | | /| / / __ '/ __/ ___/ __ \
 ___/ /  __/ / / (__  ) /_/ / /      | |/ |/ / /_/ / /_/ /__/ / / /
/____/\___/_/ /_/____/\____/_/       |__/|__/\__,_/\__/\___/_/ /_/
                                        v%s - Sensor Bus Monitor
    `
	fmt.Fprintf(w, banner, Version)
	fmt.Fprintln(w, "\n------------------------------------------------")
}
